package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memService struct {
	entries map[int64]*Entry
	mu      sync.RWMutex
	nextID  int64
}

// MemService returns a memory backed implementation of Service.
func MemService() Service {
	return &memService{
		entries: map[int64]*Entry{},
	}
}

func (s *memService) Create(ctx context.Context, entry *Entry) (*Entry, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Name == entry.Name {
			return nil, wrapError(ErrNotUnique, "name '%s'", entry.Name)
		}
	}

	now := time.Now().UTC()

	s.nextID++

	e := *entry
	e.ID = s.nextID
	e.CreatedAt = now
	e.UpdatedAt = now

	s.entries[e.ID] = &e

	return copyEntry(&e), nil
}

func (s *memService) Get(ctx context.Context, name string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.Name == name {
			return copyEntry(e), nil
		}
	}

	return nil, wrapError(ErrNotFound, "name '%s'", name)
}

func (s *memService) GetByID(ctx context.Context, id int64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, wrapError(ErrNotFound, "id %d", id)
	}

	return copyEntry(e), nil
}

func (s *memService) Query(ctx context.Context, opts QueryOptions) (List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l := List{}

	for _, e := range s.entries {
		if !inIDs(e.ID, opts.IDs) || !inNames(e.Name, opts.Names) {
			continue
		}

		l = append(l, copyEntry(e))
	}

	sort.Sort(l)

	if opts.Limit > 0 && len(l) > opts.Limit {
		l = l[:opts.Limit]
	}

	return l, nil
}

func (s *memService) Update(
	ctx context.Context,
	id int64,
	patch Patch,
) (*Entry, error) {
	if patch.Empty() {
		return nil, wrapError(ErrNotFound, "no fields to update for id %d", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, wrapError(ErrNotFound, "id %d", id)
	}

	n := patch.Apply(e)

	if err := n.Validate(); err != nil {
		return nil, err
	}

	for _, o := range s.entries {
		if o.ID != id && o.Name == n.Name {
			return nil, wrapError(ErrNotUnique, "name '%s'", n.Name)
		}
	}

	n.UpdatedAt = time.Now().UTC()

	s.entries[id] = n

	return copyEntry(n), nil
}

func (s *memService) Setup(ctx context.Context) error {
	return nil
}

func (s *memService) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = map[int64]*Entry{}
	s.nextID = 0

	return nil
}

func copyEntry(e *Entry) *Entry {
	c := *e

	return &c
}

func inIDs(id int64, ids []int64) bool {
	if len(ids) == 0 {
		return true
	}

	for _, i := range ids {
		if i == id {
			return true
		}
	}

	return false
}

func inNames(name string, names []string) bool {
	if len(names) == 0 {
		return true
	}

	for _, n := range names {
		if n == name {
			return true
		}
	}

	return false
}

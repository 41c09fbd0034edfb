package catalog

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/asaskevich/govalidator"

	"github.com/i-egik/NameCount/platform/service"
)

// Bounds for entry fields.
const (
	maxDescriptionLen = "1024"
	maxNameLen        = "128"
)

// nameSeparator separates the parts of counter keys and may not appear in a
// name.
const nameSeparator = ":"

// Entry registers a counter name and carries its immutable id.
type Entry struct {
	DefaultValue int64     `json:"default_value" db:"default_value"`
	Description  string    `json:"description" db:"description"`
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Validate performs semantic checks on the passed Entry values for
// correctness.
func (e *Entry) Validate() error {
	if govalidator.IsNull(e.Name) || govalidator.HasWhitespaceOnly(e.Name) {
		return wrapError(ErrInvalidEntry, "name must be set")
	}

	if !govalidator.StringLength(e.Name, "1", maxNameLen) {
		return wrapError(ErrInvalidEntry, "name too long")
	}

	if strings.IndexFunc(e.Name, unprintable) >= 0 {
		return wrapError(ErrInvalidEntry, "name '%s' contains unprintable characters", e.Name)
	}

	if strings.Contains(e.Name, nameSeparator) {
		return wrapError(ErrInvalidEntry, "name '%s' contains '%s'", e.Name, nameSeparator)
	}

	if !govalidator.StringLength(e.Description, "0", maxDescriptionLen) {
		return wrapError(ErrInvalidEntry, "description too long")
	}

	return nil
}

func unprintable(r rune) bool {
	return !unicode.IsPrint(r)
}

// List is a collection of entries.
type List []*Entry

func (l List) Len() int {
	return len(l)
}

func (l List) Less(i, j int) bool {
	return l[i].ID < l[j].ID
}

func (l List) Swap(i, j int) {
	l[i], l[j] = l[j], l[i]
}

// Patch carries the fields of a partial update, nil fields stay untouched.
type Patch struct {
	DefaultValue *int64  `json:"default_value,omitempty"`
	Description  *string `json:"description,omitempty"`
	Name         *string `json:"name,omitempty"`
}

// Empty indicates that no field is set.
func (p Patch) Empty() bool {
	return p.DefaultValue == nil && p.Description == nil && p.Name == nil
}

// Apply returns a copy of e with the set fields of p.
func (p Patch) Apply(e *Entry) *Entry {
	n := *e

	if p.DefaultValue != nil {
		n.DefaultValue = *p.DefaultValue
	}

	if p.Description != nil {
		n.Description = *p.Description
	}

	if p.Name != nil {
		n.Name = *p.Name
	}

	return &n
}

// QueryOptions is used to narrow-down entry queries.
type QueryOptions struct {
	IDs   []int64
	Limit int
	Names []string
}

// Service for catalog interactions.
type Service interface {
	service.Lifecycle

	Create(ctx context.Context, entry *Entry) (*Entry, error)
	Get(ctx context.Context, name string) (*Entry, error)
	GetByID(ctx context.Context, id int64) (*Entry, error)
	Query(ctx context.Context, opts QueryOptions) (List, error)
	Update(ctx context.Context, id int64, patch Patch) (*Entry, error)
}

// ServiceMiddleware is a chainable behaviour modifier for Service.
type ServiceMiddleware func(Service) Service

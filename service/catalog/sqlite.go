package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/i-egik/NameCount/platform/sqlite"
)

const (
	sqliteCreateEntry = `
		INSERT INTO catalog(name, description, default_value, created_at_ns, updated_at_ns)
		VALUES(?, ?, ?, ?, ?)
		RETURNING
			id, name, description, default_value, created_at_ns, updated_at_ns`
	sqliteUpdateEntry = `
		UPDATE
			catalog
		SET
			%s
		WHERE
			id = ?
		RETURNING
			id, name, description, default_value, created_at_ns, updated_at_ns`
	sqliteListEntries = `
		SELECT
			id, name, description, default_value, created_at_ns, updated_at_ns
		FROM
			catalog
		%s
		ORDER BY
			id ASC
		%s`

	sqliteAssignDefaultValue = `default_value = ?`
	sqliteAssignDescription  = `description = ?`
	sqliteAssignName         = `name = ?`
	sqliteAssignUpdatedAt    = `updated_at_ns = ?`

	sqliteCreateTable = `
		CREATE TABLE IF NOT EXISTS catalog(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			default_value INTEGER NOT NULL DEFAULT 0,
			created_at_ns INTEGER NOT NULL,
			updated_at_ns INTEGER NOT NULL
		)`
	sqliteDropTable = `DROP TABLE IF EXISTS catalog`
)

type sqliteEntry struct {
	DefaultValue int64  `db:"default_value"`
	Description  string `db:"description"`
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	CreatedAtNs  int64  `db:"created_at_ns"`
	UpdatedAtNs  int64  `db:"updated_at_ns"`
}

func (r sqliteEntry) entry() *Entry {
	return &Entry{
		DefaultValue: r.DefaultValue,
		Description:  r.Description,
		ID:           r.ID,
		Name:         r.Name,
		CreatedAt:    time.Unix(0, r.CreatedAtNs).UTC(),
		UpdatedAt:    time.Unix(0, r.UpdatedAtNs).UTC(),
	}
}

type sqliteService struct {
	db    *sqlx.DB
	ready atomic.Bool
}

// SQLiteService returns a SQLite based Service implementation. The table is
// created on first use.
func SQLiteService(db *sqlx.DB) Service {
	return &sqliteService{db: db}
}

func (s *sqliteService) Create(ctx context.Context, entry *Entry) (*Entry, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	var (
		now = time.Now().UTC().UnixNano()
		r   = sqliteEntry{}
	)

	err := s.db.GetContext(
		ctx,
		&r,
		sqliteCreateEntry,
		entry.Name,
		entry.Description,
		entry.DefaultValue,
		now,
		now,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(sqlite.WrapError(err)) {
			return nil, wrapError(ErrNotUnique, "name '%s'", entry.Name)
		}

		return nil, err
	}

	return r.entry(), nil
}

func (s *sqliteService) Get(ctx context.Context, name string) (*Entry, error) {
	l, err := s.Query(ctx, QueryOptions{
		Limit: 1,
		Names: []string{name},
	})
	if err != nil {
		return nil, err
	}

	if len(l) == 0 {
		return nil, wrapError(ErrNotFound, "name '%s'", name)
	}

	return l[0], nil
}

func (s *sqliteService) GetByID(ctx context.Context, id int64) (*Entry, error) {
	l, err := s.Query(ctx, QueryOptions{
		IDs:   []int64{id},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}

	if len(l) == 0 {
		return nil, wrapError(ErrNotFound, "id %d", id)
	}

	return l[0], nil
}

func (s *sqliteService) Query(ctx context.Context, opts QueryOptions) (List, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	where, args, err := convertOpts(opts)
	if err != nil {
		return nil, err
	}

	limit := ""
	if opts.Limit > 0 {
		limit = fmt.Sprintf(pgLimit, opts.Limit)
	}

	rs := []sqliteEntry{}

	err = s.db.SelectContext(
		ctx,
		&rs,
		fmt.Sprintf(sqliteListEntries, where, limit),
		args...,
	)
	if err != nil {
		return nil, err
	}

	l := List{}

	for _, r := range rs {
		l = append(l, r.entry())
	}

	return l, nil
}

func (s *sqliteService) Update(
	ctx context.Context,
	id int64,
	patch Patch,
) (*Entry, error) {
	if patch.Empty() {
		return nil, wrapError(ErrNotFound, "no fields to update for id %d", id)
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := patch.Apply(current).Validate(); err != nil {
		return nil, err
	}

	var (
		args        = []interface{}{}
		assignments = []string{}
	)

	if patch.Name != nil {
		args = append(args, *patch.Name)
		assignments = append(assignments, sqliteAssignName)
	}

	if patch.Description != nil {
		args = append(args, *patch.Description)
		assignments = append(assignments, sqliteAssignDescription)
	}

	if patch.DefaultValue != nil {
		args = append(args, *patch.DefaultValue)
		assignments = append(assignments, sqliteAssignDefaultValue)
	}

	args = append(args, time.Now().UTC().UnixNano(), id)
	assignments = append(assignments, sqliteAssignUpdatedAt)

	var (
		query = fmt.Sprintf(sqliteUpdateEntry, strings.Join(assignments, ",\n"))
		r     = sqliteEntry{}
	)

	err = s.db.GetContext(ctx, &r, query, args...)
	switch {
	case err == sql.ErrNoRows:
		return nil, wrapError(ErrNotFound, "id %d", id)
	case err != nil && sqlite.IsUniqueViolation(sqlite.WrapError(err)):
		return nil, wrapError(ErrNotUnique, "name '%s'", *patch.Name)
	case err != nil:
		return nil, err
	}

	return r.entry(), nil
}

func (s *sqliteService) Setup(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteCreateTable)
	if err != nil {
		return fmt.Errorf("setup '%s': %s", sqliteCreateTable, err)
	}

	s.ready.Store(true)

	return nil
}

func (s *sqliteService) Teardown(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteDropTable)
	if err != nil {
		return fmt.Errorf("teardown '%s': %s", sqliteDropTable, err)
	}

	s.ready.Store(false)

	return nil
}

func (s *sqliteService) ensure(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	return s.Setup(ctx)
}

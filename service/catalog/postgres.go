package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/i-egik/NameCount/platform/pg"
)

const (
	pgCreateEntry = `
		INSERT INTO %s.catalog(name, description, default_value)
		VALUES($1, $2, $3)
		RETURNING
			id, name, description, default_value, created_at, updated_at`
	pgUpdateEntry = `
		UPDATE
			%s.catalog
		%s
		WHERE
			id = $1
		RETURNING
			id, name, description, default_value, created_at, updated_at`
	pgListEntries = `
		SELECT
			id, name, description, default_value, created_at, updated_at
		FROM
			%s.catalog
		%s
		ORDER BY
			id ASC
		%s`

	pgAssignDefaultValue = `default_value = $%d`
	pgAssignDescription  = `description = $%d`
	pgAssignName         = `name = $%d`
	pgAssignUpdatedAt    = `updated_at = (now() AT TIME ZONE 'utc')`

	pgClauseIDs   = `id IN (?)`
	pgClauseNames = `name IN (?)`

	pgLimit = `LIMIT %d`

	pgCreateSchema = `CREATE SCHEMA IF NOT EXISTS %s`
	pgCreateTable  = `
		CREATE TABLE IF NOT EXISTS %s.catalog(
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			default_value BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITHOUT TIME ZONE DEFAULT (now() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP WITHOUT TIME ZONE DEFAULT (now() AT TIME ZONE 'utc')
		)`
	pgDropTable = `DROP TABLE IF EXISTS %s.catalog CASCADE`

	pgIndexName = `
		CREATE UNIQUE INDEX
			%s
		ON
			%s.catalog
		USING
			btree(name)`
)

type pgService struct {
	db *sqlx.DB
	ns string
}

// PostgresService returns a Postgres based Service implementation storing its
// table in the schema ns.
func PostgresService(db *sqlx.DB, ns string) Service {
	return &pgService{db: db, ns: ns}
}

func (s *pgService) Create(ctx context.Context, entry *Entry) (*Entry, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	var (
		args = []interface{}{
			entry.Name,
			entry.Description,
			entry.DefaultValue,
		}
		query = fmt.Sprintf(pgCreateEntry, s.ns)

		e = &Entry{}
	)

	err := s.withSetup(ctx, func() error {
		return s.db.GetContext(ctx, e, query, args...)
	})
	if err != nil {
		if pg.IsUniqueViolation(pg.WrapError(err)) {
			return nil, wrapError(ErrNotUnique, "name '%s'", entry.Name)
		}

		return nil, err
	}

	return e, nil
}

func (s *pgService) Get(ctx context.Context, name string) (*Entry, error) {
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

func (s *pgService) GetByID(ctx context.Context, id int64) (*Entry, error) {
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

func (s *pgService) Query(ctx context.Context, opts QueryOptions) (List, error) {
	where, args, err := convertOpts(opts)
	if err != nil {
		return nil, err
	}

	limit := ""
	if opts.Limit > 0 {
		limit = fmt.Sprintf(pgLimit, opts.Limit)
	}

	query := s.db.Rebind(fmt.Sprintf(pgListEntries, s.ns, where, limit))

	l := List{}

	err = s.withSetup(ctx, func() error {
		return s.db.SelectContext(ctx, &l, query, args...)
	})
	if err != nil {
		return nil, err
	}

	return l, nil
}

func (s *pgService) Update(
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
		args        = []interface{}{id}
		assignments = []string{}
	)

	if patch.Name != nil {
		args = append(args, *patch.Name)
		assignments = append(assignments, fmt.Sprintf(pgAssignName, len(args)))
	}

	if patch.Description != nil {
		args = append(args, *patch.Description)
		assignments = append(assignments, fmt.Sprintf(pgAssignDescription, len(args)))
	}

	if patch.DefaultValue != nil {
		args = append(args, *patch.DefaultValue)
		assignments = append(assignments, fmt.Sprintf(pgAssignDefaultValue, len(args)))
	}

	assignments = append(assignments, pgAssignUpdatedAt)

	var (
		e     = &Entry{}
		query = fmt.Sprintf(pgUpdateEntry, s.ns, pg.AssignmentsToSet(assignments...))
	)

	err = s.db.GetContext(ctx, e, query, args...)
	switch {
	case err == sql.ErrNoRows:
		return nil, wrapError(ErrNotFound, "id %d", id)
	case err != nil && pg.IsUniqueViolation(pg.WrapError(err)):
		return nil, wrapError(ErrNotUnique, "name '%s'", *patch.Name)
	case err != nil:
		return nil, err
	}

	return e, nil
}

func (s *pgService) Setup(ctx context.Context) error {
	for _, q := range []string{
		fmt.Sprintf(pgCreateSchema, s.ns),
		fmt.Sprintf(pgCreateTable, s.ns),

		// Indexes.
		pg.GuardIndex(s.ns, "catalog_name", pgIndexName),
	} {
		_, err := s.db.ExecContext(ctx, q)
		if err != nil {
			return fmt.Errorf("setup '%s': %s", q, err)
		}
	}

	return nil
}

func (s *pgService) Teardown(ctx context.Context) error {
	for _, q := range []string{
		fmt.Sprintf(pgDropTable, s.ns),
	} {
		_, err := s.db.ExecContext(ctx, q)
		if err != nil {
			return fmt.Errorf("teardown '%s': %s", q, err)
		}
	}

	return nil
}

// withSetup runs fn and, if the schema is missing, sets it up and runs fn once
// more.
func (s *pgService) withSetup(ctx context.Context, fn func() error) error {
	err := fn()
	if err != nil && pg.IsRelationNotFound(pg.WrapError(err)) {
		if err := s.Setup(ctx); err != nil {
			return err
		}

		err = fn()
	}

	return err
}

func convertOpts(opts QueryOptions) (string, []interface{}, error) {
	var (
		clauses = []string{}
		args    = []interface{}{}
	)

	if len(opts.IDs) > 0 {
		clause, ps, err := sqlx.In(pgClauseIDs, opts.IDs)
		if err != nil {
			return "", nil, err
		}

		clauses = append(clauses, clause)
		args = append(args, ps...)
	}

	if len(opts.Names) > 0 {
		clause, ps, err := sqlx.In(pgClauseNames, opts.Names)
		if err != nil {
			return "", nil, err
		}

		clauses = append(clauses, clause)
		args = append(args, ps...)
	}

	if len(clauses) == 0 {
		return "", args, nil
	}

	return pg.ClausesToWhere(clauses...), args, nil
}

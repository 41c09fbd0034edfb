package counter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/i-egik/NameCount/platform/pg"
)

const (
	pgColumns = `id, counter_id, user_id, value, created_at, updated_at`

	pgGetCounter = `
		SELECT
			` + pgColumns + `
		FROM
			%s.counters
		WHERE
			counter_id = $1
			AND user_id = $2
		LIMIT
			1`
	pgInsertCounter = `
		INSERT INTO %s.counters(counter_id, user_id, value)
		VALUES($1, $2, $3)
		RETURNING
			` + pgColumns
	pgUpdateCounter = `
		UPDATE
			%s.counters
		SET
			value = $3,
			updated_at = (now() AT TIME ZONE 'utc')
		WHERE
			counter_id = $1
			AND user_id = $2
		RETURNING
			` + pgColumns
	pgUpsertCounter = `
		INSERT INTO %s.counters(counter_id, user_id, value)
		VALUES($1, $2, $3)
		ON CONFLICT (counter_id, user_id) DO
		UPDATE SET
			value = EXCLUDED.value,
			updated_at = (now() AT TIME ZONE 'utc')
		RETURNING
			` + pgColumns

	pgCreateSchema = `CREATE SCHEMA IF NOT EXISTS %s`
	pgCreateTable  = `
		CREATE TABLE IF NOT EXISTS %s.counters(
			id BIGSERIAL PRIMARY KEY,
			counter_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			value BIGINT NOT NULL,
			created_at TIMESTAMP WITHOUT TIME ZONE DEFAULT (now() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP WITHOUT TIME ZONE DEFAULT (now() AT TIME ZONE 'utc'),

			CONSTRAINT counter_user UNIQUE (counter_id, user_id)
		)`
	pgDropTable = `DROP TABLE IF EXISTS %s.counters CASCADE`

	pgIndexCounterID = `
		CREATE INDEX
			%s
		ON
			%s.counters
		USING
			btree(counter_id)`
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

func (s *pgService) Create(
	ctx context.Context,
	counterID, userID, value int64,
) (*Counter, error) {
	c, err := s.get(ctx, pgInsertCounter, counterID, userID, value)
	if err != nil && pg.IsUniqueViolation(pg.WrapError(err)) {
		return nil, wrapError(ErrExists, "counter %d user %d", counterID, userID)
	}

	return c, err
}

func (s *pgService) Get(
	ctx context.Context,
	counterID, userID int64,
) (*Counter, error) {
	c, err := s.get(ctx, pgGetCounter, counterID, userID)
	if err == sql.ErrNoRows {
		return nil, wrapError(ErrNotFound, "counter %d user %d", counterID, userID)
	}

	return c, err
}

func (s *pgService) Update(
	ctx context.Context,
	counterID, userID, value int64,
) (*Counter, error) {
	c, err := s.get(ctx, pgUpdateCounter, counterID, userID, value)
	if err == sql.ErrNoRows {
		return nil, wrapError(ErrNotFound, "counter %d user %d", counterID, userID)
	}

	return c, err
}

func (s *pgService) UpdateOrCreate(
	ctx context.Context,
	counterID, userID, value int64,
) (*Counter, error) {
	return s.get(ctx, pgUpsertCounter, counterID, userID, value)
}

func (s *pgService) Setup(ctx context.Context) error {
	for _, q := range []string{
		fmt.Sprintf(pgCreateSchema, s.ns),
		fmt.Sprintf(pgCreateTable, s.ns),

		// Indexes.
		pg.GuardIndex(s.ns, "counter_counter_id", pgIndexCounterID),
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

func (s *pgService) get(
	ctx context.Context,
	query string,
	args ...interface{},
) (*Counter, error) {
	var (
		c = &Counter{}
		q = fmt.Sprintf(query, s.ns)
	)

	err := s.withSetup(ctx, func() error {
		return s.db.GetContext(ctx, c, q, args...)
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

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

package counter

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/i-egik/NameCount/platform/sqlite"
)

const (
	sqliteColumns = `id, counter_id, user_id, value, created_at_ns, updated_at_ns`

	sqliteGetCounter = `
		SELECT
			` + sqliteColumns + `
		FROM
			counters
		WHERE
			counter_id = ?
			AND user_id = ?
		LIMIT
			1`
	sqliteInsertCounter = `
		INSERT INTO counters(counter_id, user_id, value, created_at_ns, updated_at_ns)
		VALUES(?, ?, ?, ?, ?)
		RETURNING
			` + sqliteColumns
	sqliteUpdateCounter = `
		UPDATE
			counters
		SET
			value = ?,
			updated_at_ns = ?
		WHERE
			counter_id = ?
			AND user_id = ?
		RETURNING
			` + sqliteColumns
	sqliteUpsertCounter = `
		INSERT INTO counters(counter_id, user_id, value, created_at_ns, updated_at_ns)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT (counter_id, user_id) DO
		UPDATE SET
			value = excluded.value,
			updated_at_ns = excluded.updated_at_ns
		RETURNING
			` + sqliteColumns

	sqliteCreateTable = `
		CREATE TABLE IF NOT EXISTS counters(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			counter_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			value INTEGER NOT NULL,
			created_at_ns INTEGER NOT NULL,
			updated_at_ns INTEGER NOT NULL,

			UNIQUE (counter_id, user_id)
		)`
	sqliteDropTable = `DROP TABLE IF EXISTS counters`
)

type sqliteCounter struct {
	CounterID   int64 `db:"counter_id"`
	ID          int64 `db:"id"`
	UserID      int64 `db:"user_id"`
	Value       int64 `db:"value"`
	CreatedAtNs int64 `db:"created_at_ns"`
	UpdatedAtNs int64 `db:"updated_at_ns"`
}

func (r sqliteCounter) counter() *Counter {
	return &Counter{
		CounterID: r.CounterID,
		ID:        r.ID,
		UserID:    r.UserID,
		Value:     r.Value,
		CreatedAt: time.Unix(0, r.CreatedAtNs).UTC(),
		UpdatedAt: time.Unix(0, r.UpdatedAtNs).UTC(),
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

func (s *sqliteService) Create(
	ctx context.Context,
	counterID, userID, value int64,
) (*Counter, error) {
	now := time.Now().UTC().UnixNano()

	c, err := s.get(ctx, sqliteInsertCounter, counterID, userID, value, now, now)
	if err != nil && sqlite.IsUniqueViolation(sqlite.WrapError(err)) {
		return nil, wrapError(ErrExists, "counter %d user %d", counterID, userID)
	}

	return c, err
}

func (s *sqliteService) Get(
	ctx context.Context,
	counterID, userID int64,
) (*Counter, error) {
	c, err := s.get(ctx, sqliteGetCounter, counterID, userID)
	if err == sql.ErrNoRows {
		return nil, wrapError(ErrNotFound, "counter %d user %d", counterID, userID)
	}

	return c, err
}

func (s *sqliteService) Update(
	ctx context.Context,
	counterID, userID, value int64,
) (*Counter, error) {
	now := time.Now().UTC().UnixNano()

	c, err := s.get(ctx, sqliteUpdateCounter, value, now, counterID, userID)
	if err == sql.ErrNoRows {
		return nil, wrapError(ErrNotFound, "counter %d user %d", counterID, userID)
	}

	return c, err
}

func (s *sqliteService) UpdateOrCreate(
	ctx context.Context,
	counterID, userID, value int64,
) (*Counter, error) {
	now := time.Now().UTC().UnixNano()

	return s.get(ctx, sqliteUpsertCounter, counterID, userID, value, now, now)
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

func (s *sqliteService) get(
	ctx context.Context,
	query string,
	args ...interface{},
) (*Counter, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	r := sqliteCounter{}

	if err := s.db.GetContext(ctx, &r, query, args...); err != nil {
		return nil, err
	}

	return r.counter(), nil
}

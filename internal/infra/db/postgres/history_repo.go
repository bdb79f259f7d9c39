package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/bryanwahyu/nutrisnap/internal/domain/meal"
	"github.com/bryanwahyu/nutrisnap/internal/infra/db/historysql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meal_history (
  id          BIGSERIAL PRIMARY KEY,
  identity    TEXT        NOT NULL,
  stamped_at  VARCHAR(16) NOT NULL,
  record_json JSONB       NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL
);`,
	`CREATE INDEX IF NOT EXISTS idx_meal_history_identity ON meal_history (identity, id);`,
}

// HistoryRepository stores one row per analysis in Postgres.
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewHistoryRepository(db *sql.DB, now func() time.Time) *HistoryRepository {
	if now == nil {
		now = time.Now
	}
	return &HistoryRepository{db: db, now: now}
}

// EnsureSchema creates the meal_history table and index when missing.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append inserts one entry; guest appends are skipped.
func (r *HistoryRepository) Append(ctx context.Context, identity string, record meal.AnalysisRecord) (meal.HistoryEntry, error) {
	identity = meal.NormalizeIdentity(identity)
	if identity == meal.GuestIdentity {
		return meal.HistoryEntry{}, nil
	}

	now := r.now()
	entry, payload, err := historysql.NewEntry(record, now)
	if err != nil {
		return meal.HistoryEntry{}, err
	}

	const q = `
INSERT INTO meal_history (identity, stamped_at, record_json, created_at)
VALUES ($1,$2,$3,$4);
`
	if _, err := r.db.ExecContext(ctx, q, identity, entry.Timestamp, payload, now); err != nil {
		return meal.HistoryEntry{}, err
	}
	return entry, nil
}

// Load returns every identity's entries in insertion order.
func (r *HistoryRepository) Load(ctx context.Context) (meal.Store, error) {
	const q = `
SELECT identity, stamped_at, record_json::text
FROM meal_history
ORDER BY id ASC;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return historysql.ScanStore(rows)
}

// Query returns identity's entries in insertion order.
func (r *HistoryRepository) Query(ctx context.Context, identity string) ([]meal.HistoryEntry, error) {
	identity = meal.NormalizeIdentity(identity)
	if identity == meal.GuestIdentity {
		return []meal.HistoryEntry{}, nil
	}

	const q = `
SELECT stamped_at, record_json::text
FROM meal_history
WHERE identity=$1
ORDER BY id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, identity)
	if err != nil {
		return nil, err
	}
	return historysql.ScanEntries(rows)
}

// Ping reports database reachability for health checks.
func (r *HistoryRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

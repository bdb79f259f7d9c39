package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/bryanwahyu/nutrisnap/internal/domain/meal"
	"github.com/bryanwahyu/nutrisnap/internal/infra/db/historysql"
)

const schema = `
CREATE TABLE IF NOT EXISTS meal_history (
  id          BIGINT AUTO_INCREMENT PRIMARY KEY,
  identity    VARCHAR(191) NOT NULL,
  stamped_at  VARCHAR(16)  NOT NULL,
  record_json JSON         NOT NULL,
  created_at  DATETIME(3)  NOT NULL,
  INDEX idx_meal_history_identity (identity, id)
) CHARACTER SET utf8mb4;
`

// HistoryRepository stores one row per analysis in MySQL.
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

// EnsureSchema creates the meal_history table when missing.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
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
VALUES (?,?,?,?);
`
	if _, err := r.db.ExecContext(ctx, q, identity, entry.Timestamp, payload, now); err != nil {
		return meal.HistoryEntry{}, err
	}
	return entry, nil
}

// Load returns every identity's entries in insertion order.
func (r *HistoryRepository) Load(ctx context.Context) (meal.Store, error) {
	const q = `
SELECT identity, stamped_at, record_json
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
SELECT stamped_at, record_json
FROM meal_history
WHERE identity=?
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

// Package historysql holds the row encoding shared by the SQL history
// repositories. Each driver package owns its schema and query text.
package historysql

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

// NewEntry stamps a canonical copy of record at now and returns it with the
// record_json column value.
func NewEntry(record meal.AnalysisRecord, now time.Time) (meal.HistoryEntry, string, error) {
	entry := meal.HistoryEntry{AnalysisRecord: record.Canonical(), Timestamp: now.Format(meal.TimestampLayout)}
	payload, err := json.Marshal(entry.AnalysisRecord)
	if err != nil {
		return meal.HistoryEntry{}, "", fmt.Errorf("encode record: %w", err)
	}
	return entry, string(payload), nil
}

// ScanStore reads (identity, stamped_at, record_json) rows into a Store and
// closes rows. Unreadable records are skipped.
func ScanStore(rows *sql.Rows) (meal.Store, error) {
	defer rows.Close()

	store := meal.Store{}
	for rows.Next() {
		var identity, stamp, payload string
		if err := rows.Scan(&identity, &stamp, &payload); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if entry, ok := DecodeEntry(stamp, payload); ok {
			store[identity] = append(store[identity], entry)
		}
	}
	return store, rows.Err()
}

// ScanEntries reads (stamped_at, record_json) rows in order and closes rows.
func ScanEntries(rows *sql.Rows) ([]meal.HistoryEntry, error) {
	defer rows.Close()

	out := []meal.HistoryEntry{}
	for rows.Next() {
		var stamp, payload string
		if err := rows.Scan(&stamp, &payload); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if entry, ok := DecodeEntry(stamp, payload); ok {
			out = append(out, entry)
		}
	}
	return out, rows.Err()
}

// DecodeEntry rebuilds an entry from its columns, reporting false for a
// record_json value that no longer parses.
func DecodeEntry(stamp, payload string) (meal.HistoryEntry, bool) {
	rec, err := meal.ParseRecord(payload)
	if err != nil {
		slog.Warn("skip unreadable history row", "error", fmt.Errorf("%w: %w", meal.ErrStoreCorrupt, err))
		return meal.HistoryEntry{}, false
	}
	return meal.HistoryEntry{AnalysisRecord: rec, Timestamp: stamp}, true
}

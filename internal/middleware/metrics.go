package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

// Metrics stores process counters.
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64

	AnalysesTotal     atomic.Uint64
	AnalysesFood      atomic.Uint64
	AnalysesNotFood   atomic.Uint64
	AnalysesFailed    atomic.Uint64
	AnalysesRejected  atomic.Uint64
	HistoryAppends    atomic.Uint64
	CredentialMissing atomic.Uint64

	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// AnalysisFinished counts one analysis outcome.
func (m *Metrics) AnalysisFinished(rec domain.AnalysisRecord, err error) {
	m.AnalysesTotal.Add(1)
	switch {
	case err == nil && rec.IsFood:
		m.AnalysesFood.Add(1)
	case err == nil:
		m.AnalysesNotFood.Add(1)
	case errors.Is(err, domain.ErrImageDecode):
		m.AnalysesRejected.Add(1)
	case errors.Is(err, domain.ErrMissingCredential):
		m.CredentialMissing.Add(1)
	default:
		m.AnalysesFailed.Add(1)
	}
}

func (m *Metrics) HistoryAppended() {
	m.HistoryAppends.Add(1)
}

// Snapshot returns the counters plus runtime stats.
func (m *Metrics) Snapshot() map[string]any {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return map[string]any{
		"requests_total":       m.RequestsTotal.Load(),
		"requests_in_progress": m.RequestsInProgress.Load(),
		"requests_success":     m.RequestsSuccess.Load(),
		"requests_failed":      m.RequestsFailed.Load(),
		"analyses": map[string]any{
			"total":              m.AnalysesTotal.Load(),
			"food":               m.AnalysesFood.Load(),
			"not_food":           m.AnalysesNotFood.Load(),
			"failed":             m.AnalysesFailed.Load(),
			"rejected_images":    m.AnalysesRejected.Load(),
			"missing_credential": m.CredentialMissing.Load(),
		},
		"history_appends": m.HistoryAppends.Load(),
		"uptime_seconds":  time.Since(m.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       ms.Alloc,
			"total_alloc_bytes": ms.TotalAlloc,
			"sys_bytes":         ms.Sys,
			"num_gc":            ms.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request counters.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler serves the snapshot as JSON.
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}

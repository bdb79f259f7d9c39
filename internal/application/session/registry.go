package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry keeps the live sessions of the HTTP surface keyed by id.
type Registry struct {
	mu       sync.RWMutex
	machines map[string]*Machine

	submitter Submitter
	now       func() time.Time
}

func NewRegistry(s Submitter, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{machines: make(map[string]*Machine), submitter: s, now: now}
}

// Create starts a new session in the Capturing phase.
func (r *Registry) Create() (string, *Machine) {
	id := uuid.NewString()
	m := NewMachine(r.submitter, r.now)

	r.mu.Lock()
	r.machines[id] = m
	r.mu.Unlock()
	return id, m
}

func (r *Registry) Get(id string) (*Machine, error) {
	r.mu.RLock()
	m, ok := r.machines[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.machines[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.machines, id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.machines)
}

// Sweep drops sessions idle for longer than idle. Sessions with a submission
// in flight are kept. It returns the number removed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, m := range r.machines {
		last, idleNow := m.idleSince()
		if idleNow && last.Before(cutoff) {
			delete(r.machines, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval, idle time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(idle); n > 0 {
					logger.Debug("expired idle sessions", "removed", n, "remaining", r.Len())
				}
			}
		}
	}()
}

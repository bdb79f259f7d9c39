package session

import (
	"context"
	"sync"
	"time"

	"github.com/bryanwahyu/nutrisnap/internal/application/meal"
)

// Submitter runs one analysis. *meal.Service satisfies it.
type Submitter interface {
	Analyze(ctx context.Context, identity string, blob []byte) (meal.Result, error)
}

// Machine sequences one session: capture a photo, show the result, reset.
// Submissions are serialized; the view only changes once a validated record exists.
type Machine struct {
	mu         sync.Mutex
	view       View
	busy       bool
	lastActive time.Time

	submitter Submitter
	now       func() time.Time
}

// NewMachine returns a machine in the Capturing phase.
func NewMachine(s Submitter, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{view: Capturing(), submitter: s, now: now, lastActive: now()}
}

// State returns a snapshot of the current view.
func (m *Machine) State() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Submit analyses blob for identity. It is only valid while Capturing; a
// second call while one is in flight returns ErrBusy. On failure the view
// stays Capturing and the error is returned unchanged.
func (m *Machine) Submit(ctx context.Context, identity string, blob []byte) (View, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return View{}, ErrBusy
	}
	if m.view.Phase != PhaseCapturing {
		v := m.view
		m.mu.Unlock()
		return v, ErrInvalidTransition
	}
	m.busy = true
	m.lastActive = m.now()
	m.mu.Unlock()

	res, err := m.submitter.Analyze(ctx, identity, blob)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
	m.lastActive = m.now()
	if err != nil {
		return m.view, err
	}
	next, err := m.view.Show(res.Record, res.PhotoURL, res.Persisted)
	if err != nil {
		return m.view, err
	}
	m.view = next
	return next, nil
}

// Reset returns a Showing session to Capturing.
func (m *Machine) Reset() (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return m.view, ErrBusy
	}
	next, err := m.view.Reset()
	if err != nil {
		return m.view, err
	}
	m.view = next
	m.lastActive = m.now()
	return next, nil
}

// idleSince reports when the machine was last used, and false while a submission runs.
func (m *Machine) idleSince() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive, !m.busy
}

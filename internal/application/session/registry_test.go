package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/nutrisnap/internal/application/meal"
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(&stubSubmitter{}, nil)

	id, m := r.Create()
	require.NotEmpty(t, id)
	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Same(t, m, got)

	other, _ := r.Create()
	assert.NotEqual(t, id, other)
	assert.Equal(t, 2, r.Len())

	require.NoError(t, r.Delete(id))
	_, err = r.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Delete(id), ErrSessionNotFound)
}

func TestRegistrySweepDropsIdleSessions(t *testing.T) {
	clock := &manualClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	sub := &stubSubmitter{res: meal.Result{Record: domain.AnalysisRecord{Name: "Apple"}}}
	r := NewRegistry(sub, clock.Now)

	stale, _ := r.Create()
	clock.Advance(20 * time.Minute)
	fresh, m := r.Create()
	clock.Advance(5 * time.Minute)
	_, err := m.Submit(context.Background(), "alice", []byte("img"))
	require.NoError(t, err)

	assert.Equal(t, 1, r.Sweep(15*time.Minute))
	_, err = r.Get(stale)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Get(fresh)
	assert.NoError(t, err)
}

func TestRegistrySweeperStopsWithContext(t *testing.T) {
	clock := &manualClock{t: time.Now()}
	r := NewRegistry(&stubSubmitter{}, clock.Now)
	r.Create()
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartSweeper(ctx, 5*time.Millisecond, time.Minute, nil)

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}

package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/nutrisnap/internal/application/meal"
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
	"github.com/bryanwahyu/nutrisnap/internal/infra/history"
)

type stubSubmitter struct {
	res     meal.Result
	err     error
	calls   int
	release chan struct{}
	started chan struct{}
}

func (s *stubSubmitter) Analyze(ctx context.Context, _ string, _ []byte) (meal.Result, error) {
	s.calls++
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	return s.res, s.err
}

func TestMachineSubmitAndReset(t *testing.T) {
	sub := &stubSubmitter{res: meal.Result{Record: domain.AnalysisRecord{IsFood: true, Name: "Apple", Calories: 95}, Persisted: true}}
	m := NewMachine(sub, nil)
	assert.Equal(t, PhaseCapturing, m.State().Phase)

	v, err := m.Submit(context.Background(), "alice", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, PhaseShowing, v.Phase)
	assert.Equal(t, "Apple", v.Record.Name)
	assert.Equal(t, v, m.State())

	_, err = m.Submit(context.Background(), "alice", []byte("img"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, sub.calls)

	v, err = m.Reset()
	require.NoError(t, err)
	assert.Equal(t, PhaseCapturing, v.Phase)
	assert.Nil(t, m.State().Record)

	_, err = m.Reset()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMachineFailureStaysCapturing(t *testing.T) {
	sub := &stubSubmitter{err: domain.ErrImageDecode}
	m := NewMachine(sub, nil)

	v, err := m.Submit(context.Background(), "alice", []byte("junk"))
	assert.ErrorIs(t, err, domain.ErrImageDecode)
	assert.Equal(t, PhaseCapturing, v.Phase)
	assert.Equal(t, Capturing(), m.State())

	sub.err = nil
	sub.res = meal.Result{Record: domain.AnalysisRecord{Name: "Soup"}}
	v, err = m.Submit(context.Background(), "alice", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "Soup", v.Record.Name)
}

func TestMachineRejectsConcurrentSubmit(t *testing.T) {
	sub := &stubSubmitter{
		res:     meal.Result{Record: domain.AnalysisRecord{Name: "Apple"}},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	m := NewMachine(sub, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background(), "alice", []byte("img"))
		done <- err
	}()
	<-sub.started

	_, err := m.Submit(context.Background(), "alice", []byte("img"))
	assert.ErrorIs(t, err, ErrBusy)
	_, err = m.Reset()
	assert.ErrorIs(t, err, ErrBusy)

	close(sub.release)
	require.NoError(t, <-done)
	assert.True(t, m.State().Showing())
}

type slowAnalyzer struct{}

func (slowAnalyzer) Analyze(ctx context.Context, _ string) (domain.AnalysisRecord, error) {
	<-ctx.Done()
	return domain.AnalysisRecord{}, domain.Failed("request", ctx.Err())
}

type passNormalizer struct{}

func (passNormalizer) Normalize(blob []byte) (domain.NormalizedImage, error) {
	return domain.NormalizedImage{JPEG: blob, Base64: "aW1n", Width: 1, Height: 1}, nil
}

func TestMachineTimeoutLeavesNoHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	store := history.NewFileStore(path)
	svc := &meal.Service{
		Normalizer: passNormalizer{},
		Analyzer:   slowAnalyzer{},
		Store:      store,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	m := NewMachine(svc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	v, err := m.Submit(ctx, "alice", []byte("img"))
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, PhaseCapturing, v.Phase)

	entries, err := store.Query(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoFileExists(t, path)
}

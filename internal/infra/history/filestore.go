package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

const lockRetryDelay = 25 * time.Millisecond

// FileStore keeps every identity's history in one pretty-printed JSON
// document that is rewritten in full on each append.
//
// Appends are serialized by an in-process mutex and an advisory file lock on
// "<path>.lock", and the document is replaced by rename, so concurrent
// writers never drop each other's entries and readers never see a torn file.
type FileStore struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a FileStore.
type Option func(*FileStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used to report recovered corruption.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStore returns a store backed by path. The file is created on the
// first non-guest append.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

// Load returns the whole document. A missing, unreadable, or invalid file
// yields an empty store and never an error.
func (s *FileStore) Load(ctx context.Context) (meal.Store, error) {
	store, _ := s.load()
	return store, nil
}

// Query returns identity's entries in append order.
func (s *FileStore) Query(ctx context.Context, identity string) ([]meal.HistoryEntry, error) {
	identity = meal.NormalizeIdentity(identity)
	if identity == meal.GuestIdentity {
		return []meal.HistoryEntry{}, nil
	}
	store, _ := s.load()
	entries := make([]meal.HistoryEntry, len(store[identity]))
	copy(entries, store[identity])
	return entries, nil
}

// Append stamps record with the current minute and adds it to identity's
// history. Guest appends are no-ops and return a zero entry.
func (s *FileStore) Append(ctx context.Context, identity string, record meal.AnalysisRecord) (meal.HistoryEntry, error) {
	identity = meal.NormalizeIdentity(identity)
	if identity == meal.GuestIdentity {
		return meal.HistoryEntry{}, nil
	}
	if err := ctx.Err(); err != nil {
		return meal.HistoryEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return meal.HistoryEntry{}, fmt.Errorf("ensure history directory: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return meal.HistoryEntry{}, fmt.Errorf("lock history file: %w", err)
	}
	if !locked {
		return meal.HistoryEntry{}, errors.New("lock history file: not acquired")
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("unlock history file", "path", s.path, "error", err)
		}
	}()

	store, corrupt := s.load()
	if corrupt {
		s.preserveCorrupt()
	}

	entry := meal.HistoryEntry{
		AnalysisRecord: record.Canonical(),
		Timestamp:      s.now().Format(meal.TimestampLayout),
	}
	store[identity] = append(store[identity], entry)

	if err := s.write(store); err != nil {
		return meal.HistoryEntry{}, err
	}
	return entry, nil
}

// load reads the document; corrupt reports a file that exists but could not
// be used.
func (s *FileStore) load() (meal.Store, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meal.Store{}, false
		}
		s.logger.Warn("history unreadable, treating as empty", "path", s.path, "error", fmt.Errorf("%w: %w", meal.ErrStoreCorrupt, err))
		return meal.Store{}, true
	}

	var store meal.Store
	if err := json.Unmarshal(data, &store); err != nil {
		s.logger.Warn("history invalid, treating as empty", "path", s.path, "error", fmt.Errorf("%w: %w", meal.ErrStoreCorrupt, err))
		return meal.Store{}, true
	}
	if store == nil {
		store = meal.Store{}
	}
	return store, false
}

// preserveCorrupt moves an unusable document aside before it is overwritten.
func (s *FileStore) preserveCorrupt() {
	backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().UnixNano())
	if err := os.Rename(s.path, backup); err != nil {
		s.logger.Warn("preserve corrupt history", "path", s.path, "error", err)
		return
	}
	s.logger.Warn("corrupt history moved aside", "path", s.path, "backup", backup)
}

func (s *FileStore) write(store meal.Store) error {
	data, err := json.MarshalIndent(store, "", "    ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create history temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

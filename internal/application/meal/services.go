package meal

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bryanwahyu/nutrisnap/internal/application"
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

// Recorder receives analysis outcomes for metrics.
type Recorder interface {
	AnalysisFinished(rec domain.AnalysisRecord, err error)
	HistoryAppended()
}

// credentialed is implemented by analyzers that can report a missing key up front.
type credentialed interface {
	HasCredential() bool
}

// Service runs one analysis: normalize, call the model, archive, persist.
// It holds no per-session state and is safe for concurrent use.
type Service struct {
	Normalizer domain.ImageNormalizer
	Analyzer   domain.Analyzer
	Store      domain.HistoryStore
	Archive    domain.PhotoArchive
	Clock      application.Clock
	Metrics    Recorder
	Logger     *slog.Logger
}

// Result is a successful analysis.
type Result struct {
	Record   domain.AnalysisRecord
	Entry    domain.HistoryEntry
	PhotoURL string
	// Persisted is false for the guest identity or when the history write failed.
	Persisted bool
}

// Analyze runs the full pipeline for one photo. It returns
// domain.ErrMissingCredential without touching the image when no key is
// configured, domain.ErrImageDecode for unusable uploads, and an error
// matching domain.ErrAnalysisFailed when the model call fails. History and
// archive failures are logged; the analysis result is still returned.
func (s *Service) Analyze(ctx context.Context, identity string, blob []byte) (Result, error) {
	identity = domain.NormalizeIdentity(identity)
	logger := s.logger().With("identity", identity)

	if c, ok := s.Analyzer.(credentialed); ok && !c.HasCredential() {
		s.finished(domain.AnalysisRecord{}, domain.ErrMissingCredential)
		return Result{}, domain.ErrMissingCredential
	}

	img, err := s.Normalizer.Normalize(blob)
	if err != nil {
		logger.Info("image rejected", "bytes", len(blob), "error", err)
		s.finished(domain.AnalysisRecord{}, err)
		return Result{}, err
	}

	rec, err := s.Analyzer.Analyze(ctx, img.Base64)
	if err != nil {
		logger.Error("analysis failed", "width", img.Width, "height", img.Height, "error", err)
		s.finished(domain.AnalysisRecord{}, err)
		return Result{}, err
	}
	s.finished(rec, nil)
	logger.Info("analysis complete", "name", rec.Name, "is_food", rec.IsFood, "calories", rec.Calories)

	res := Result{Record: rec}
	if identity == domain.GuestIdentity {
		return res, nil
	}

	if s.Archive != nil {
		key := domain.PhotoKey(identity, s.clock().Now(), uuid.NewString())
		url, err := s.Archive.Put(ctx, key, img.JPEG)
		if err != nil {
			logger.Warn("photo archive failed", "key", key, "error", err)
		} else {
			res.PhotoURL = url
		}
	}

	entry, err := s.Store.Append(ctx, identity, rec)
	if err != nil {
		logger.Error("history append failed", "error", err)
		return res, nil
	}
	res.Entry = entry
	res.Persisted = true
	if s.Metrics != nil {
		s.Metrics.HistoryAppended()
	}
	return res, nil
}

// History returns identity's entries newest first. Guests have no history.
func (s *Service) History(ctx context.Context, identity string) ([]domain.HistoryEntry, error) {
	identity = domain.NormalizeIdentity(identity)
	if identity == domain.GuestIdentity {
		return []domain.HistoryEntry{}, nil
	}
	entries, err := s.Store.Query(ctx, identity)
	if err != nil {
		return nil, err
	}
	return domain.NewestFirst(entries), nil
}

// Ready reports whether submissions can be attempted.
func (s *Service) Ready() error {
	if s.Analyzer == nil {
		return errors.New("no analyzer configured")
	}
	if c, ok := s.Analyzer.(credentialed); ok && !c.HasCredential() {
		return domain.ErrMissingCredential
	}
	return nil
}

func (s *Service) finished(rec domain.AnalysisRecord, err error) {
	if s.Metrics != nil {
		s.Metrics.AnalysisFinished(rec, err)
	}
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

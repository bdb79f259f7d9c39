package meal

import (
	"errors"
	"fmt"
)

var (
	// ErrImageDecode indicates the submitted blob is not a decodable raster image.
	ErrImageDecode = errors.New("image decode error")
	// ErrMissingCredential indicates no model credential is configured; no request is attempted.
	ErrMissingCredential = errors.New("missing analysis credential")
	// ErrAnalysisFailed marks any transport, status, or parse failure of the model call.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrStoreCorrupt indicates the history backing file could not be read or decoded.
	ErrStoreCorrupt = errors.New("history store corrupt")
	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")
)

// FailureMessage is the only text shown to users when an analysis fails.
const FailureMessage = "Analysis failed. Please try again."

// AnalysisFailedError carries the underlying cause of a failed analysis for logs.
type AnalysisFailedError struct {
	Op    string
	Cause error
}

func (e *AnalysisFailedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, ErrAnalysisFailed)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrAnalysisFailed, e.Cause)
}

// Unwrap exposes both ErrAnalysisFailed and the cause to errors.Is / errors.As.
func (e *AnalysisFailedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrAnalysisFailed}
	}
	return []error{ErrAnalysisFailed, e.Cause}
}

// Failed wraps cause as an AnalysisFailedError.
func Failed(op string, cause error) error {
	return &AnalysisFailedError{Op: op, Cause: cause}
}

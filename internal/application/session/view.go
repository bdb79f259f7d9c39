package session

import (
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

// Phase is the step a session is on.
type Phase string

const (
	PhaseCapturing Phase = "capturing"
	PhaseShowing   Phase = "showing"
)

// View is the state of one session. Record is set only while Showing.
type View struct {
	Phase     Phase                  `json:"phase"`
	Record    *domain.AnalysisRecord `json:"record,omitempty"`
	PhotoURL  string                 `json:"photo_url,omitempty"`
	Persisted bool                   `json:"persisted"`
}

// Capturing is the initial view.
func Capturing() View {
	return View{Phase: PhaseCapturing}
}

// Showing reports whether a result is on screen.
func (v View) Showing() bool {
	return v.Phase == PhaseShowing
}

// Show moves a capturing view to the result.
func (v View) Show(rec domain.AnalysisRecord, photoURL string, persisted bool) (View, error) {
	if v.Phase != PhaseCapturing {
		return v, ErrInvalidTransition
	}
	return View{Phase: PhaseShowing, Record: &rec, PhotoURL: photoURL, Persisted: persisted}, nil
}

// Reset discards the shown result.
func (v View) Reset() (View, error) {
	if v.Phase != PhaseShowing {
		return v, ErrInvalidTransition
	}
	return Capturing(), nil
}

package httpserver

import (
	"strings"

	"github.com/bryanwahyu/nutrisnap/internal/application/session"
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

const defaultCardTitle = "Analysis Result"

// Card is the result panel. Score, macros, ingredients and summary are only
// present for food.
type Card struct {
	Title         string `json:"title"`
	ShortReport   string `json:"short_report"`
	ShowMacros    bool   `json:"show_macros"`
	HealthScore   *int   `json:"health_score,omitempty"`
	Calories      *int   `json:"calories,omitempty"`
	Protein       *int   `json:"protein,omitempty"`
	Carbs         *int   `json:"carbs,omitempty"`
	Fats          *int   `json:"fats,omitempty"`
	Ingredients   string `json:"ingredients,omitempty"`
	HealthSummary string `json:"health_summary,omitempty"`
	PhotoURL      string `json:"photo_url,omitempty"`
}

func NewCard(rec domain.AnalysisRecord, photoURL string) Card {
	c := Card{
		Title:       rec.Name,
		ShortReport: rec.ShortReport,
		ShowMacros:  rec.IsFood,
		PhotoURL:    photoURL,
	}
	if c.Title == "" {
		c.Title = defaultCardTitle
	}
	if !rec.IsFood {
		return c
	}
	c.HealthScore = &rec.HealthScore
	c.Calories = &rec.Calories
	c.Protein = &rec.Protein
	c.Carbs = &rec.Carbs
	c.Fats = &rec.Fats
	c.Ingredients = "None"
	if len(rec.Ingredients) > 0 {
		c.Ingredients = strings.Join(rec.Ingredients, ", ")
	}
	c.HealthSummary = rec.HealthSummary
	return c
}

type sessionResponse struct {
	SessionID string       `json:"session_id"`
	View      session.View `json:"view"`
	Card      *Card        `json:"card,omitempty"`
}

func newSessionResponse(id string, v session.View) sessionResponse {
	resp := sessionResponse{SessionID: id, View: v}
	if v.Showing() && v.Record != nil {
		card := NewCard(*v.Record, v.PhotoURL)
		resp.Card = &card
	}
	return resp
}

// HistoryItem is one sidebar row.
type HistoryItem struct {
	Label string `json:"label"`
	domain.HistoryEntry
}

type historyResponse struct {
	Identity string        `json:"identity"`
	Entries  []HistoryItem `json:"entries"`
	Message  string        `json:"message,omitempty"`
}

const (
	guestHistoryHint = "Log in with a username to track your meal history."
	emptyHistoryHint = "No meals tracked yet."
)

func newHistoryResponse(identity string, entries []domain.HistoryEntry) historyResponse {
	resp := historyResponse{Identity: identity, Entries: make([]HistoryItem, 0, len(entries))}
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "Meal"
		}
		resp.Entries = append(resp.Entries, HistoryItem{Label: name + " - " + e.Timestamp, HistoryEntry: e})
	}
	switch {
	case domain.IsGuest(identity):
		resp.Message = guestHistoryHint
	case len(entries) == 0:
		resp.Message = emptyHistoryHint
	}
	return resp
}

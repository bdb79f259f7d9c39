package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "demo-model",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func replyWith(t *testing.T, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(completion(content)); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestAnalyzeApple(t *testing.T) {
	var gotBody map[string]any
	server, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &gotBody))
		replyWith(t, `{"is_food":true,"name":"Apple","health_score":90,"calories":95,"protein":0,"carbs":25,"fats":0,"ingredients":["apple"],"health_summary":"Fibre rich.","short_report":"A great low-calorie snack."}`)(w, r)
	})

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "demo-model"})
	rec, err := client.Analyze(context.Background(), "QUJD")
	require.NoError(t, err)

	assert.Equal(t, meal.AnalysisRecord{
		IsFood:        true,
		Name:          "Apple",
		HealthScore:   90,
		Calories:      95,
		Carbs:         25,
		Ingredients:   []string{"apple"},
		HealthSummary: "Fibre rich.",
		ShortReport:   "A great low-calorie snack.",
	}, rec)

	assert.Equal(t, "demo-model", gotBody["model"])
	assert.InDelta(t, 0.1, gotBody["temperature"], 1e-6)
	format, _ := gotBody["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
	raw, _ := json.Marshal(gotBody["messages"])
	assert.Contains(t, string(raw), "data:image/jpeg;base64,QUJD")
}

func TestAnalyzeArrayPayload(t *testing.T) {
	server, _ := newServer(t, replyWith(t, `[{"name":"Pizza","calories":285}]`))

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	rec, err := client.Analyze(context.Background(), "QUJD")
	require.NoError(t, err)
	assert.Equal(t, "Pizza", rec.Name)
	assert.Equal(t, 285, rec.Calories)
}

func TestAnalyzeMissingCredentialMakesNoRequest(t *testing.T) {
	server, hits := newServer(t, replyWith(t, `{}`))

	client := NewClient(Config{APIKey: "  ", BaseURL: server.URL})
	_, err := client.Analyze(context.Background(), "QUJD")

	assert.ErrorIs(t, err, meal.ErrMissingCredential)
	assert.NotErrorIs(t, err, meal.ErrAnalysisFailed)
	assert.Zero(t, hits.Load())
	assert.False(t, client.HasCredential())
}

func TestAnalyzeFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		quota   bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
			},
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"rate_limit"}}`))
			},
			quota: true,
		},
		{
			name: "not json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>gateway</html>"))
			},
		},
		{name: "content not json", handler: replyWith(t, "I think this is a sandwich.")},
		{name: "content empty", handler: replyWith(t, "")},
		{name: "content empty array", handler: replyWith(t, "[]")},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server, hits := newServer(t, tc.handler)
			client := NewClient(Config{APIKey: "k", BaseURL: server.URL})

			rec, err := client.Analyze(context.Background(), "QUJD")
			require.Error(t, err)
			assert.ErrorIs(t, err, meal.ErrAnalysisFailed)
			assert.Equal(t, meal.AnalysisRecord{}, rec)
			assert.Equal(t, int32(1), hits.Load(), "no retries")
			if tc.quota {
				assert.ErrorIs(t, err, meal.ErrQuotaExceeded)
			}
		})
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := client.Analyze(context.Background(), "QUJD")

	assert.ErrorIs(t, err, meal.ErrAnalysisFailed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAttributionHeaders(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://nutrisnap.example", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "NutriSnap", r.Header.Get("X-Title"))
		replyWith(t, `{"name":"Tea"}`)(w, r)
	})

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL + "/", Referer: "https://nutrisnap.example", Title: "NutriSnap"})
	rec, err := client.Analyze(context.Background(), "QUJD")
	require.NoError(t, err)
	assert.Equal(t, "Tea", rec.Name)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	assert.Equal(t, DefaultModel, client.Model())
	assert.True(t, strings.HasPrefix(client.cfg.BaseURL, "https://"))
	assert.Equal(t, DefaultTimeout, client.cfg.Timeout)
}

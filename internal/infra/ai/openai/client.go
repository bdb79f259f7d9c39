package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/nutrisnap/internal/domain/meal"
	"github.com/bryanwahyu/nutrisnap/internal/infra/ai/prompt"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "google/gemini-2.0-flash-001"
	DefaultTimeout = 60 * time.Second

	analyzeOp = "analyze meal"
)

// Config captures what is needed to reach an OpenAI-compatible endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	// Referer and Title are sent as OpenRouter attribution headers when set.
	Referer string
	Title   string
}

// Client implements meal.Analyzer on top of the chat completions API.
type Client struct {
	*openai.Client
	cfg Config
}

// Option customizes the client.
type Option func(*openai.ClientConfig)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *openai.ClientConfig) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = prompt.DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &headerTransport{referer: cfg.Referer, title: cfg.Title, base: http.DefaultTransport},
	}
	for _, opt := range opts {
		opt(&oc)
	}
	return &Client{Client: openai.NewClientWithConfig(oc), cfg: cfg}
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.cfg.APIKey != ""
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Analyze sends one normalized photo to the model and parses the reply.
// A missing credential fails before any request is made. Every other failure
// is reported as meal.ErrAnalysisFailed; there are no retries.
func (c *Client) Analyze(ctx context.Context, imageBase64 string) (meal.AnalysisRecord, error) {
	if !c.HasCredential() {
		return meal.AnalysisRecord{}, meal.ErrMissingCredential
	}
	if strings.TrimSpace(imageBase64) == "" {
		return meal.AnalysisRecord{}, meal.Failed(analyzeOp, errors.New("empty image payload"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := prompt.BuildMealRequest(c.cfg.Model, c.cfg.Temperature, imageBase64)
	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return meal.AnalysisRecord{}, meal.Failed(analyzeOp, classify(err))
	}
	if len(resp.Choices) == 0 {
		return meal.AnalysisRecord{}, meal.Failed(analyzeOp, errors.New("response has no choices"))
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return meal.AnalysisRecord{}, meal.Failed(analyzeOp, &emptyContentError{
			FinishReason: string(choice.FinishReason),
			Refusal:      choice.Message.Refusal,
		})
	}

	rec, err := meal.ParseRecord(choice.Message.Content)
	if err != nil {
		return meal.AnalysisRecord{}, meal.Failed(analyzeOp, err)
	}
	return rec, nil
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("empty content (finish_reason=%q, refusal=%q)", e.FinishReason, e.Refusal)
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", meal.ErrQuotaExceeded, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", meal.ErrQuotaExceeded, err)
	}
	return err
}

type headerTransport struct {
	referer string
	title   string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer == "" && t.title == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	if t.referer != "" {
		clone.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		clone.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(clone)
}

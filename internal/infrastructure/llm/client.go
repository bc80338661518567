// Package llm implements categorization.Categorizer on top of an
// OpenAI-compatible chat completions endpoint with structured JSON output.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/curricula/backend/internal/infrastructure/config"
	"github.com/curricula/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	maxResponseBytes    = 4 << 20
	maxRetryAfter       = time.Minute
)

// Option customizes a Categorizer
type Option func(*Categorizer)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Categorizer) {
		c.httpClient = client
	}
}

// Categorizer asks a chat model to score candidate objectives for one item.
// It holds no per-call state and performs no retries of its own.
type Categorizer struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	model         string
	temperature   float64
	maxCandidates int
	maxBodyChars  int
	logger        *zap.Logger
}

// NewCategorizer creates a Categorizer from LLM config
func NewCategorizer(cfg config.LLMConfig, logger *zap.Logger, opts ...Option) (*Categorizer, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("llm: base url is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("llm: model is required")
	}

	c := &Categorizer{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxCandidates: cfg.MaxCandidates,
		maxBodyChars:  cfg.MaxBodyChars,
		logger:        logger.Named("llm-categorizer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ categorization.Categorizer = (*Categorizer)(nil)

// Categorize implements categorization.Categorizer
func (c *Categorizer) Categorize(ctx context.Context, item *content.Item, candidates []*standards.Objective) ([]categorization.Match, error) {
	if len(candidates) == 0 {
		return nil, categorization.NewPermanentError(errors.New("no candidate objectives"))
	}
	if c.maxCandidates > 0 && len(candidates) > c.maxCandidates {
		candidates = candidates[:c.maxCandidates]
	}

	ctx, span := telemetry.StartSpan(ctx, "llm.categorize",
		telemetry.ItemID(item.ID),
		telemetry.AttrCandidateCount.Int(len(candidates)),
		telemetry.AttrModel.String(c.model),
	)
	defer span.End()

	refs := newCandidateRefs(candidates)
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(itemText(item, c.maxBodyChars), refs)},
		},
		Temperature:    c.temperature,
		ResponseFormat: matchesResponseFormat(),
	}

	start := time.Now()
	resp, raw, err := c.doOnce(ctx, req)
	if err != nil {
		classified := classifyTransportError(resp, raw, err)
		telemetry.RecordError(span, classified)
		c.logger.Debug("categorize request failed",
			zap.String("item_id", item.ID.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(classified),
		)
		return nil, classified
	}

	matches, err := parseCompletion(raw, refs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(telemetry.AttrMatchCount.Int(len(matches)))
	c.logger.Debug("item categorized",
		zap.String("item_id", item.ID.String()),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return matches, nil
}

// httpError is a non-2xx answer from the endpoint
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("llm http %d: %s", e.StatusCode, truncate(e.Body, 512))
}

func (c *Categorizer) doOnce(ctx context.Context, body chatRequest) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, &buf)
	if err != nil {
		return nil, nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

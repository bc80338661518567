package llm

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/curricula/backend/internal/domain/categorization"
)

// apiErrorBody is the OpenAI error envelope
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func parseAPIError(raw []byte) apiErrorBody {
	var body apiErrorBody
	_ = json.Unmarshal(raw, &body)
	return body
}

// classifyTransportError maps a failed request onto the categorizer error taxonomy:
//   - network failures, 408, 429 and 5xx are transient
//   - a prompt too large for the model is an invalid response, so the caller
//     retries with fewer candidates
//   - every other 4xx, including policy rejections, is permanent
func classifyTransportError(resp *http.Response, raw []byte, err error) error {
	var he *httpError
	if !errors.As(err, &he) {
		return categorization.NewTransientError(err, 0)
	}

	switch {
	case he.StatusCode == http.StatusRequestTimeout,
		he.StatusCode == http.StatusTooManyRequests,
		he.StatusCode >= 500:
		return categorization.NewTransientError(err, retryAfter(resp, time.Now()))
	}

	apiErr := parseAPIError(raw)
	if apiErr.Error.Code == "context_length_exceeded" {
		return categorization.NewInvalidResponseError(err, string(raw))
	}
	return categorization.NewPermanentError(err)
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date
func retryAfter(resp *http.Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}
	ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if ra == "" {
		return 0
	}

	var d time.Duration
	if secs, err := strconv.Atoi(ra); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(ra); err == nil {
		d = at.Sub(now)
	}

	if d < 0 {
		return 0
	}
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

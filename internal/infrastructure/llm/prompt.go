package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
)

const systemPrompt = `You map educational content to curriculum standard objectives.
You receive one content item and a numbered list of candidate objectives.
Return only objectives the content substantially teaches or assesses.
For each match give the candidate ref, a confidence between 0 and 1, and one sentence of reasoning.
Return an empty list when nothing matches. Never invent refs.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

type matchesPayload struct {
	Matches []struct {
		Ref        string  `json:"ref"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	} `json:"matches"`
}

func matchesResponseFormat() map[string]any {
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "objective_matches",
			"strict": true,
			"schema": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"matches"},
				"properties": map[string]any{
					"matches": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":                 "object",
							"additionalProperties": false,
							"required":             []string{"ref", "confidence", "reasoning"},
							"properties": map[string]any{
								"ref":        map[string]any{"type": "string"},
								"confidence": map[string]any{"type": "number"},
								"reasoning":  map[string]any{"type": "string"},
							},
						},
					},
				},
			},
		},
	}
}

// candidateRefs gives candidates short stable refs so the model never has to
// echo UUIDs back
type candidateRefs struct {
	ordered []*standards.Objective
	byRef   map[string]uuid.UUID
}

func newCandidateRefs(candidates []*standards.Objective) candidateRefs {
	refs := candidateRefs{
		ordered: candidates,
		byRef:   make(map[string]uuid.UUID, len(candidates)),
	}
	for i, o := range candidates {
		refs.byRef[refName(i)] = o.ID
	}
	return refs
}

func refName(i int) string {
	return "O" + strconv.Itoa(i+1)
}

func buildUserPrompt(text string, refs candidateRefs) string {
	var b strings.Builder
	b.WriteString("Content item:\n")
	b.WriteString(text)
	b.WriteString("\n\nCandidate objectives:\n")
	for i, o := range refs.ordered {
		fmt.Fprintf(&b, "%s [%s] %s", refName(i), o.Code, o.Title)
		if o.Description != "" {
			b.WriteString(" - ")
			b.WriteString(o.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var placeholderURL = &url.URL{Scheme: "https", Host: "content.invalid"}

// itemText renders the categorization input of an item. HTML bodies are
// reduced to their readable text first; the body is cut to maxChars runes.
func itemText(item *content.Item, maxChars int) string {
	body := item.Body
	if item.Type == content.ItemTypeHTML && strings.TrimSpace(body) != "" {
		if article, err := readability.FromReader(strings.NewReader(body), placeholderURL); err == nil {
			if text := strings.TrimSpace(article.TextContent); text != "" {
				body = text
			}
		}
	}
	body = truncateRunes(strings.TrimSpace(body), maxChars)

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nType: %s\n", item.Title, item.Type)
	if item.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", item.Description)
	}
	if body != "" {
		fmt.Fprintf(&b, "Body:\n%s\n", body)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// parseCompletion decodes the model output into matches. Anything that does
// not follow the schema is an InvalidResponseError; refusals and content
// filtering are permanent.
func parseCompletion(raw []byte, refs candidateRefs) ([]categorization.Match, error) {
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, categorization.NewInvalidResponseError(fmt.Errorf("decode completion: %w", err), string(raw))
	}
	if len(resp.Choices) == 0 {
		return nil, categorization.NewInvalidResponseError(errors.New("completion has no choices"), string(raw))
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, categorization.NewPermanentError(fmt.Errorf("model refused: %s", choice.Message.Refusal))
	}
	switch choice.FinishReason {
	case "content_filter":
		return nil, categorization.NewPermanentError(errors.New("completion blocked by content filter"))
	case "length":
		return nil, categorization.NewInvalidResponseError(errors.New("completion truncated"), choice.Message.Content)
	}

	var payload matchesPayload
	if err := json.Unmarshal([]byte(choice.Message.Content), &payload); err != nil {
		return nil, categorization.NewInvalidResponseError(fmt.Errorf("decode matches: %w", err), choice.Message.Content)
	}

	matches := make([]categorization.Match, 0, len(payload.Matches))
	seen := make(map[uuid.UUID]struct{}, len(payload.Matches))
	for _, m := range payload.Matches {
		id, ok := refs.byRef[strings.TrimSpace(m.Ref)]
		if !ok {
			return nil, categorization.NewInvalidResponseError(fmt.Errorf("unknown candidate ref %q", m.Ref), choice.Message.Content)
		}
		if math.IsNaN(m.Confidence) || m.Confidence < 0 || m.Confidence > 1 {
			return nil, categorization.NewInvalidResponseError(
				fmt.Errorf("confidence %v for %s out of range", m.Confidence, m.Ref), choice.Message.Content)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		matches = append(matches, categorization.Match{
			ObjectiveID: id,
			Confidence:  m.Confidence,
			Reasoning:   strings.TrimSpace(m.Reasoning),
		})
	}
	return matches, nil
}

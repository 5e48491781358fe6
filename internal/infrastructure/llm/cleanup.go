package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// CleanJSON strips markdown code fences around a model response and isolates
// the outermost JSON object.
func CleanJSON(raw string) string {
	text := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(text, "```json"):
		text = text[len("```json"):]
	case strings.HasPrefix(text, "```"):
		text = text[len("```"):]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return extractJSONObject(strings.TrimSpace(text))
}

// ParseObject decodes a cleaned model response into a JSON object.
func ParseObject(raw string) (map[string]any, error) {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return nil, &domain.ResponseParseError{Raw: raw, Err: errors.New("empty response body")}
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, &domain.ResponseParseError{Raw: raw, Err: err}
	}
	if out == nil {
		return nil, &domain.ResponseParseError{Raw: raw, Err: errors.New("response is not a json object")}
	}
	return out, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

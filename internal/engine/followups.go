package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

type followupsPayload struct {
	Followups []string `mapstructure:"followups"`
}

// parseFollowups decodes the model's reply into a list of questions. The
// model is asked for {"followups": [...]} but replies vary: bare arrays and
// fenced code blocks show up regularly, so both shapes are accepted.
func parseFollowups(raw string) ([]string, error) {
	cleaned := extractJSON(raw)

	var decoded any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, fmt.Errorf("parse followups response: %w", err)
	}

	switch value := decoded.(type) {
	case []any:
		return coerceStrings(value), nil
	case map[string]any:
		var payload followupsPayload
		if err := mapstructure.Decode(value, &payload); err != nil {
			return nil, fmt.Errorf("decode followups object: %w", err)
		}
		return sanitize(payload.Followups), nil
	default:
		return nil, fmt.Errorf("unexpected followups shape %T", decoded)
	}
}

// extractJSON strips markdown code fences the model wraps around JSON output.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceStrings(values []any) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func sanitize(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

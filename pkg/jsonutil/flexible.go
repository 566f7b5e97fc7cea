package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Try number
	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	// Try boolean
	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// FlexibleStringSlice converts a json.RawMessage to a string slice. LLMs return
// enum value lists either as JSON arrays or as a single comma-separated string.
// Returns nil for null/empty.
func FlexibleStringSlice(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		out := make([]string, 0, len(arr))
		for _, el := range arr {
			if s := FlexibleStringValue(el); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}

	// Comma-separated string fallback
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		var out []string
		for _, part := range strings.Split(strVal, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	return nil
}

// FlexibleFloat converts a json.RawMessage to a float64, handling cases where
// LLMs return confidence scores as quoted strings or percentages ("85%").
// The second return value reports whether a value could be extracted.
func FlexibleFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal, true
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		strVal = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(strVal), "%"))
		var f float64
		if _, err := fmt.Sscanf(strVal, "%g", &f); err == nil {
			// A bare "85" from a percentage string means 0.85
			if strings.HasSuffix(strings.TrimSpace(FlexibleStringValue(raw)), "%") && f > 1 {
				f = f / 100
			}
			return f, true
		}
	}

	return 0, false
}

// StripCodeFence removes a surrounding markdown code fence from LLM output.
// Models frequently wrap JSON responses in ```json ... ``` despite instructions.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

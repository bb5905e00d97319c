// Package utils holds small helpers shared by the LLM-facing layers:
// lenient JSON recovery for model output and markdown sanity checks for memo
// prose.
package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// StripCodeFences removes markdown code fences and conversational filler
// around a JSON payload and trims to the outermost object braces.
func StripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	return cleaned
}

// RepairJSON fixes common LLM JSON defects (single quotes, unquoted keys,
// trailing commas, unclosed brackets) via json-repair.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %w", err)
	}
	return repaired, nil
}

// SmartParse extracts a valid JSON document from model output, trying
// progressively more lenient strategies:
//  1. strip fences + standard parse
//  2. json-repair
//  3. hjson (most lenient)
//
// Returns the normalized JSON bytes ready for schema validation.
func SmartParse(input string) ([]byte, error) {
	cleaned := StripCodeFences(input)

	var probe interface{}
	if err := json.Unmarshal([]byte(cleaned), &probe); err == nil && isDocument(probe) {
		return []byte(cleaned), nil
	}

	if repaired, err := RepairJSON(cleaned); err == nil {
		if err := json.Unmarshal([]byte(repaired), &probe); err == nil && isDocument(probe) {
			return []byte(repaired), nil
		}
	}

	if err := hjson.Unmarshal([]byte(cleaned), &probe); err == nil && isDocument(probe) {
		if b, err := json.Marshal(probe); err == nil {
			return b, nil
		}
	}

	return nil, fmt.Errorf("no parsing strategy produced valid JSON")
}

// isDocument reports whether a decoded value is a JSON object or array; a
// bare scalar recovered from prose does not count.
func isDocument(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	return false
}

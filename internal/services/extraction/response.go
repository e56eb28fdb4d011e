package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// sentinels are backend answers that mean "not found"
var sentinels = map[string]struct{}{
	"":          {},
	"null":      {},
	"none":      {},
	"n/a":       {},
	"not found": {},
}

// IsSentinel reports whether a value means the field is absent
func IsSentinel(value string) bool {
	_, ok := sentinels[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// StripFences removes a surrounding markdown code fence (``` or ```json)
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if nl := strings.IndexByte(content, '\n'); nl >= 0 && !strings.Contains(content[:nl], "{") {
			content = content[nl+1:]
		} else {
			content = strings.TrimPrefix(content, "json")
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// ParseResponse decodes a backend answer into a field map. Sentinel values and
// nulls are dropped; numbers, booleans and nested values are stringified.
func ParseResponse(content string) (map[string]string, error) {
	content = StripFences(content)

	// Tolerate prose around the object
	if start, end := strings.IndexByte(content, '{'), strings.LastIndexByte(content, '}'); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("malformed extraction response: %w", err)
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		s, ok := stringify(value)
		if !ok || IsSentinel(s) {
			continue
		}
		fields[key] = strings.TrimSpace(s)
	}
	return fields, nil
}

func stringify(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

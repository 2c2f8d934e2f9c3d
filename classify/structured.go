package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// codeBlockRe strips markdown code fences from classifier output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ParseStructured decodes a classifier reply into v. Replies may be
// wrapped in a fenced code block and may carry prose before or after
// the JSON value; both quirks are handled here so callers only deal
// with clean decode results.
func ParseStructured(raw string, v any) error {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("classify: empty reply")
	}

	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	// Salvage: find the outermost JSON object or array in the text.
	if extracted, ok := extractJSONValue(raw); ok {
		if err := json.Unmarshal([]byte(extracted), v); err != nil {
			return fmt.Errorf("classify: parsing structured reply: %w", err)
		}
		return nil
	}

	return fmt.Errorf("classify: no JSON value found in reply")
}

// extractJSONValue returns the span from the first '{' or '[' to the
// matching last '}' or ']'.
func extractJSONValue(raw string) (string, bool) {
	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")

	start, closer := objStart, "}"
	if objStart < 0 || (arrStart >= 0 && arrStart < objStart) {
		start, closer = arrStart, "]"
	}
	if start < 0 {
		return "", false
	}

	end := strings.LastIndex(raw, closer)
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

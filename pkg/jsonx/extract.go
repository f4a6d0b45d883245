// Package jsonx extracts JSON payloads from free-form model output.
// Models asked for "JSON only" still wrap responses in markdown fences
// or prose, so callers go through Extract before unmarshalling.
package jsonx

import "strings"

// Extract returns the first balanced JSON object or array found in s, after
// stripping markdown code fences. It returns ok=false when no balanced
// payload exists. The returned string is only guaranteed balanced, not
// valid JSON; callers still unmarshal it.
func Extract(s string) (string, bool) {
	s = stripFences(s)

	start := -1
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// stripFences removes markdown code fence lines, keeping their content.
func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return strings.TrimSpace(s)
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

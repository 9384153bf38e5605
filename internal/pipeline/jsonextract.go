package pipeline

import "strings"

// ExtractJSONObject locates the first top-level balanced {...} span in
// free text. Generation output nominally contains one JSON object but may
// wrap it in prose or markdown code fences; a greedy first-{-to-last-}
// slice would truncate or over-capture around nested objects, so this
// scans brace depth while honoring string literals and escapes.
//
// Returns "" when no balanced object is found.
func ExtractJSONObject(text string) string {
	text = stripCodeFence(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

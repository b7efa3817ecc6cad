// Package jsonx extracts the JSON document from raw model output. Models
// routinely wrap JSON in Markdown code fences or surround it with prose;
// anything that still fails to parse after extraction is a hard provider
// error, never silently coerced.
package jsonx

import "strings"

// Extract strips Markdown code-fence wrapping and surrounding prose,
// returning the candidate JSON document. It does not validate the JSON.
func Extract(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// fence language tag, e.g. ```json
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}

	// Prose around a bare object: keep the outermost braces.
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON means the model response contained no JSON object at all.
var ErrNoJSON = errors.New("no JSON object in model response")

// ExtractJSON finds the first balanced JSON object in a model response and
// returns it. Models keep wrapping answers in markdown fences or chatty
// preambles no matter how firmly the prompt forbids it, so the parser strips
// fences and scans for braces instead of trusting the raw string.
func ExtractJSON(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```yaml", "```text", "```", "`json", "`"} {
		s = strings.ReplaceAll(s, fence, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}

// DecodeInto extracts the first JSON object from a model response and
// unmarshals it into out.
func DecodeInto(s string, out any) error {
	candidate := ExtractJSON(s)
	if candidate == "" {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(candidate), out)
}

package answer

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`-?\d+\.?\d*`)

// Extract converts free-form LLM response text into a typed answer.
// Priority order:
//  1. first balanced {...} or [...] substring that parses as JSON
//  2. first numeric token (float when it contains '.', otherwise int)
//  3. whole-text boolean words (true/yes, false/no)
//  4. the trimmed text itself
//
// Already-typed renderings survive a round trip: "42" stays int 42,
// "45.67" stays float, "true" stays bool.
func Extract(text string) Value {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return String("")
	}

	if candidate, ok := balancedJSON(trimmed); ok {
		var decoded interface{}
		if err := json.Unmarshal([]byte(candidate), &decoded); err == nil {
			// A bare JSON scalar keeps its natural type below; only
			// objects and arrays short-circuit here.
			switch decoded.(type) {
			case map[string]interface{}, []interface{}:
				return JSON(decoded)
			}
		}
	}

	if m := numberPattern.FindString(trimmed); m != "" {
		if strings.Contains(m, ".") {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return Float(f)
			}
		} else if n, err := strconv.ParseInt(m, 10, 64); err == nil {
			return Int(n)
		}
	}

	switch strings.ToLower(trimmed) {
	case "true", "yes":
		return Bool(true)
	case "false", "no":
		return Bool(false)
	}

	return String(trimmed)
}

// balancedJSON finds the first '{' or '[' and scans to its balanced
// closer, respecting string literals and escapes.
func balancedJSON(s string) (string, bool) {
	start := -1
	var open, closeCh byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start, open, closeCh = i, '{', '}'
			break
		}
		if s[i] == '[' {
			start, open, closeCh = i, '[', ']'
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
		case open:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

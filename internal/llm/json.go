package llm

import (
	"encoding/json"
	"fmt"
)

// ExtractJSON returns the first balanced JSON object or array in s.
//
// Model replies often frame JSON in prose or markdown fences; this scans
// for the opening brace or bracket and tracks nesting depth, ignoring
// braces inside string literals. Returns ErrMalformedReply when no
// balanced JSON is found.
func ExtractJSON(s string) (string, error) {
	start := -1
	var open, close byte
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if start == -1 {
			if c == '{' || c == '[' {
				start = i
				open = c
				if c == '{' {
					close = '}'
				} else {
					close = ']'
				}
				depth = 1
			}
			continue
		}

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
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("%w: no balanced JSON in reply", ErrMalformedReply)
}

// decodeReply extracts the JSON fragment from a model reply and unmarshals
// it into out. Any failure reports ErrMalformedReply so operations can
// apply their fallbacks.
func decodeReply(reply string, out any) error {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return nil
}

package model

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// FlexBool decodes JSON booleans that older backend builds emit as numbers
// or quoted strings: true, 1, "1", "true" all decode to true.
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); s {
	case "true", `"true"`:
		*b = true
	case "false", "null", `"false"`, `""`:
		*b = false
	default:
		n, err := strconv.ParseFloat(strings.Trim(s, `"`), 64)
		if err != nil {
			return fmt.Errorf("cannot decode %s as bool", s)
		}
		*b = n != 0
	}
	return nil
}

// Bool returns the plain bool value.
func (b FlexBool) Bool() bool {
	return bool(b)
}

// SanitizeJSON removes trailing commas before closing braces and brackets.
// Some backend builds emit them and encoding/json rejects the whole
// document. The scan is string-aware so commas inside values survive.
func SanitizeJSON(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	escaped := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
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
		case ',':
			// Look ahead past whitespace; the comma goes when the next
			// token closes the enclosing value.
			j := i + 1
			for j < len(data) && isJSONSpace(data[j]) {
				j++
			}
			if j < len(data) && (data[j] == '}' || data[j] == ']') {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"strconv"
	"strings"
)

// Coerce converts a CSV cell to the narrowest matching scalar: int64,
// float64, bool ("true"/"false"), or the trimmed string. It reports false
// for empty cells.
func Coerce(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if looksNumeric(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return s, true
}

// looksNumeric rejects forms ParseFloat accepts that are not plain
// decimal numbers, such as "inf", "NaN", hex floats, and underscores.
func looksNumeric(s string) bool {
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
		case (r == '-' || r == '+') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		case (r == 'e' || r == 'E') && i > 0:
		default:
			return false
		}
	}
	return true
}

package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EncodePatterns serializes a pattern map into the single-column stored form.
func EncodePatterns(p Patterns) string {
	if len(p) == 0 {
		return "{}"
	}
	data, err := json.Marshal(map[string]uint64(p))
	if err != nil {
		// map[string]uint64 always marshals
		return "{}"
	}
	return string(data)
}

// DecodePatterns parses the stored form. Entries whose value is not a
// non-negative integer are dropped. A malformed document returns an empty map
// together with the parse error so callers can log it and carry on.
func DecodePatterns(s string) (Patterns, error) {
	out := Patterns{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Patterns{}, fmt.Errorf("decoding patterns: %w", err)
	}

	for name, v := range raw {
		if n, ok := ParseCount(v); ok {
			out[name] = n
		}
	}
	return out, nil
}

// ParseCount converts a decoded JSON value into a count. Only integer
// literals between 0 and math.MaxInt64 qualify; anything else reports false.
func ParseCount(v any) (uint64, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(num.String(), 10, 64)
	if err != nil || n > math.MaxInt64 {
		return 0, false
	}
	return n, true
}

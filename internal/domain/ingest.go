package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Pattern names the two legacy counters were folded into.
const (
	LegacyCountPattern      = "absolutely"
	LegacyRightCountPattern = "right"
)

// ErrNotObject is returned when a set body is valid JSON but not an object.
var ErrNotObject = errors.New("request body must be a JSON object")

// reservedFields never become pattern names.
var reservedFields = map[string]bool{
	"day":              true,
	TotalMessagesField: true,
	"secret":           true,
	"count":            true,
	"right_count":      true,
}

// IsReservedField reports whether name is a control field of the set payload.
func IsReservedField(name string) bool {
	return reservedFields[name]
}

// SetRequest is a set payload after normalization.
type SetRequest struct {
	Day           string
	Secret        *string
	Patterns      Patterns
	TotalMessages uint64
}

// ParseSetBody reads a JSON object keeping numbers as json.Number so that
// integer checks see the literal the client sent.
func ParseSetBody(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}
	body, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return body, nil
}

// NormalizeSet folds the legacy count fields and every other integer-valued
// top-level field into one pattern map. Non-integer values are ignored.
// A pattern field that collides with a legacy alias ("absolutely", "right")
// takes precedence over the alias.
func NormalizeSet(body map[string]any) SetRequest {
	req := SetRequest{Patterns: Patterns{}}

	if day, ok := body["day"].(string); ok {
		req.Day = day
	}
	if secret, ok := body["secret"].(string); ok {
		req.Secret = &secret
	}
	if n, ok := ParseCount(body[TotalMessagesField]); ok {
		req.TotalMessages = n
	}

	if n, ok := ParseCount(body["count"]); ok {
		req.Patterns[LegacyCountPattern] = n
	}
	if n, ok := ParseCount(body["right_count"]); ok {
		req.Patterns[LegacyRightCountPattern] = n
	}

	for name, v := range body {
		if name == "" || reservedFields[name] {
			continue
		}
		if n, ok := ParseCount(v); ok {
			req.Patterns[name] = n
		}
	}

	return req
}

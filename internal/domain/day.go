package domain

import (
	"encoding/json"
	"time"
)

// DayLayout is the calendar-day key format used everywhere a day is stored or sent.
const DayLayout = "2006-01-02"

// TotalMessagesField is the key carrying a day's message total in flat responses.
const TotalMessagesField = "total_messages"

// Patterns maps a caller-defined pattern name to how many times it was seen on one day.
type Patterns map[string]uint64

// Clone returns an independent copy. A nil map clones to an empty one.
func (p Patterns) Clone() Patterns {
	out := make(Patterns, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// DayRecord is the stored state for a single calendar day.
type DayRecord struct {
	Day           string   `json:"day"`
	Patterns      Patterns `json:"-"`
	TotalMessages uint64   `json:"total_messages"`
}

// Flat returns the pattern counts merged with total_messages, the shape served
// by the today endpoint and the live feed.
func (r DayRecord) Flat() map[string]uint64 {
	out := make(map[string]uint64, len(r.Patterns)+1)
	for k, v := range r.Patterns {
		out[k] = v
	}
	out[TotalMessagesField] = r.TotalMessages
	return out
}

// MarshalJSON flattens pattern counts alongside day and total_messages.
// The fixed fields win if a stored pattern happens to share their name.
func (r DayRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Patterns)+2)
	for k, v := range r.Patterns {
		out[k] = v
	}
	out["day"] = r.Day
	out[TotalMessagesField] = r.TotalMessages
	return json.Marshal(out)
}

// Today returns the UTC calendar day for t.
func Today(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ValidDay reports whether s is a real calendar date in YYYY-MM-DD form.
func ValidDay(s string) bool {
	_, err := time.Parse(DayLayout, s)
	return err == nil
}

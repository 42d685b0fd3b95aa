package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/absolutelyright/server/internal/domain"
)

// ErrInvalidDay is returned when a day key is not a YYYY-MM-DD date.
var ErrInvalidDay = errors.New("day must be formatted YYYY-MM-DD")

// DayStore reads and writes per-day pattern counts.
//
// Reads never fail: a missing row, an unreadable row or a malformed pattern
// column all come back as zero values and are logged. Writes return errors.
type DayStore struct {
	db  *DB
	now func() time.Time
}

// DayStoreOption configures a DayStore.
type DayStoreOption func(*DayStore)

// WithClock overrides the clock used to pick "today".
func WithClock(now func() time.Time) DayStoreOption {
	return func(s *DayStore) {
		s.now = now
	}
}

// NewDayStore creates a day store using the given database.
func NewDayStore(db *DB, opts ...DayStoreOption) *DayStore {
	s := &DayStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TodayKey returns the UTC day that Today reads.
func (s *DayStore) TodayKey() string {
	return domain.Today(s.now())
}

// Today returns the record for the current UTC day.
func (s *DayStore) Today(ctx context.Context) domain.DayRecord {
	return s.Get(ctx, s.TodayKey())
}

// Get returns the record for day. A day with no writes yields an empty
// pattern map and zero total.
func (s *DayStore) Get(ctx context.Context, day string) domain.DayRecord {
	rec := domain.DayRecord{Day: day, Patterns: domain.Patterns{}}

	var patterns sql.NullString
	var total sql.NullInt64
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT patterns, total_messages FROM day_counts WHERE day = ?`, day,
	).Scan(&patterns, &total)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.db.log.Error().Err(err).Str("day", day).Msg("failed to read day")
		}
		return rec
	}

	rec.Patterns = s.decode(day, patterns)
	rec.TotalMessages = clampTotal(total)
	return rec
}

// List returns every stored day in ascending order.
func (s *DayStore) List(ctx context.Context) []domain.DayRecord {
	records := []domain.DayRecord{}

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT day, patterns, total_messages FROM day_counts ORDER BY day ASC`,
	)
	if err != nil {
		s.db.log.Error().Err(err).Msg("failed to list days")
		return records
	}
	defer rows.Close()

	for rows.Next() {
		var day string
		var patterns sql.NullString
		var total sql.NullInt64
		if err := rows.Scan(&day, &patterns, &total); err != nil {
			s.db.log.Warn().Err(err).Msg("skipping unreadable day row")
			continue
		}
		records = append(records, domain.DayRecord{
			Day:           day,
			Patterns:      s.decode(day, patterns),
			TotalMessages: clampTotal(total),
		})
	}
	if err := rows.Err(); err != nil {
		s.db.log.Error().Err(err).Msg("failed to iterate days")
	}

	return records
}

// Upsert replaces the whole record for day. Earlier patterns for the day are
// discarded, not merged.
func (s *DayStore) Upsert(ctx context.Context, day string, patterns domain.Patterns, totalMessages uint64) error {
	if !domain.ValidDay(day) {
		return fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	if totalMessages > maxTotal {
		return fmt.Errorf("total_messages %d out of range", totalMessages)
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO day_counts (day, patterns, total_messages)
		 VALUES (?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET
		   patterns = excluded.patterns,
		   total_messages = excluded.total_messages`,
		day, domain.EncodePatterns(patterns), int64(totalMessages),
	)
	if err != nil {
		return fmt.Errorf("upserting day %s: %w", day, err)
	}

	s.db.log.Debug().
		Str("day", day).
		Int("patterns", len(patterns)).
		Uint64("total_messages", totalMessages).
		Msg("day upserted")
	return nil
}

const maxTotal = 1<<63 - 1

func (s *DayStore) decode(day string, raw sql.NullString) domain.Patterns {
	if !raw.Valid {
		return domain.Patterns{}
	}
	p, err := domain.DecodePatterns(raw.String)
	if err != nil {
		s.db.log.Warn().Err(err).Str("day", day).Msg("malformed patterns, using empty map")
	}
	return p
}

func clampTotal(v sql.NullInt64) uint64 {
	if !v.Valid || v.Int64 < 0 {
		return 0
	}
	return uint64(v.Int64)
}

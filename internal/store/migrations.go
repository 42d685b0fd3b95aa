package store

import (
	"database/sql"
	"fmt"

	"github.com/absolutelyright/server/internal/domain"
	"github.com/absolutelyright/server/internal/logging"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

// migration represents a single schema migration. Exactly one of SQL or Func is set.
type migration struct {
	Version int
	Name    string
	SQL     string
	Func    func(q execer, log *logging.Logger) error
}

func (m migration) apply(q execer, log *logging.Logger) error {
	if m.Func != nil {
		return m.Func(q, log)
	}
	_, err := q.Exec(m.SQL)
	return err
}

// migrations is the ordered list of all schema migrations.
//
// Databases written before schema_migrations existed carry a day_counts table
// with two fixed counters. Version 1 leaves such a table alone and version 2
// probes for the pattern column, so both are safe against either layout.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create day_counts",
		SQL: `
			CREATE TABLE IF NOT EXISTS day_counts (
				day            TEXT PRIMARY KEY,
				patterns       TEXT NOT NULL DEFAULT '{}',
				total_messages INTEGER DEFAULT 0
			);
		`,
	},
	{
		Version: 2,
		Name:    "fold legacy counters into patterns",
		Func:    migrateLegacyCounters,
	},
}

// migrateLegacyCounters rewrites the legacy count/right_count columns into the
// pattern map. It is a no-op when the patterns column already exists. The
// legacy columns are kept so an older binary can still read the table.
func migrateLegacyCounters(q execer, log *logging.Logger) error {
	cols, err := tableColumns(q, "day_counts")
	if err != nil {
		return err
	}
	if cols["patterns"] {
		return nil
	}

	log.Info().Msg("legacy day_counts layout detected, migrating to pattern map")

	if _, err := q.Exec(`ALTER TABLE day_counts ADD COLUMN patterns TEXT NOT NULL DEFAULT '{}'`); err != nil {
		return fmt.Errorf("adding patterns column: %w", err)
	}

	res, err := q.Exec(fmt.Sprintf(
		`UPDATE day_counts SET patterns = json_object('%s', %s, '%s', %s)`,
		domain.LegacyCountPattern, legacyColumnExpr(cols, "count"),
		domain.LegacyRightCountPattern, legacyColumnExpr(cols, "right_count"),
	))
	if err != nil {
		return fmt.Errorf("rewriting legacy counters: %w", err)
	}

	n, _ := res.RowsAffected()
	log.Info().Int64("rows", n).Msg("legacy counters migrated")
	return nil
}

// legacyColumnExpr reads a legacy counter, or 0 when the column is absent.
// SQLite reads an unknown "quoted" identifier as a string literal.
func legacyColumnExpr(cols map[string]bool, name string) string {
	if !cols[name] {
		return "0"
	}
	return fmt.Sprintf(`COALESCE("%s", 0)`, name)
}

// tableColumns returns the set of column names on table.
func tableColumns(q execer, table string) (map[string]bool, error) {
	rows, err := q.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("reading %s columns: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning %s columns: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

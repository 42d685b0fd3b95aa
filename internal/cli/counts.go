package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/absolutelyright/server/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the counts database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			versions, err := db.AppliedVersions()
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				return fmt.Errorf("database %s has no applied migrations", db.Path())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is at schema version %d\n", db.Path(), versions[len(versions)-1])
			return nil
		},
	}
}

func newTodayCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show today's counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, days, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			rec := days.Today(cmd.Context())
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rec.Flat())
			}
			return printRecords(cmd.OutOrStdout(), []domain.DayRecord{rec})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the API representation")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show every recorded day, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, days, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			records := days.List(cmd.Context())
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No days recorded.")
				return nil
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the API representation")
	return cmd
}

func newSetCmd() *cobra.Command {
	var total uint64

	cmd := &cobra.Command{
		Use:   "set <day> [pattern=count ...]",
		Short: "Replace one day's record directly in the database",
		Long: "Replace one day's record directly in the database, bypassing the HTTP\n" +
			"secret. Patterns not named are removed from the day.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := args[0]
			if !domain.ValidDay(day) {
				return fmt.Errorf("invalid day %q: want YYYY-MM-DD", day)
			}
			patterns, err := parsePatternArgs(args[1:])
			if err != nil {
				return err
			}

			db, days, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := days.Upsert(cmd.Context(), day, patterns, total); err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), []domain.DayRecord{days.Get(cmd.Context(), day)})
		},
	}

	cmd.Flags().Uint64Var(&total, "total", 0, "total messages for the day")
	return cmd
}

// parsePatternArgs parses name=count pairs. Later pairs win.
func parsePatternArgs(args []string) (domain.Patterns, error) {
	patterns := make(domain.Patterns, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid pattern %q: want name=count", arg)
		}
		if domain.IsReservedField(name) {
			return nil, fmt.Errorf("invalid pattern %q: %s is a reserved field", arg, name)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count in %q: want a non-negative integer", arg)
		}
		patterns[name] = uint64(n)
	}
	return patterns, nil
}

func printRecords(w io.Writer, records []domain.DayRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tTOTAL\tPATTERNS")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.Day, humanize.Comma(int64(rec.TotalMessages)), formatPatterns(rec.Patterns))
	}
	return tw.Flush()
}

// formatPatterns renders patterns sorted by name, e.g. "absolutely=1,204 right=7".
func formatPatterns(p domain.Patterns) string {
	if len(p) == 0 {
		return "-"
	}
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + humanize.Comma(int64(p[name]))
	}
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cli

import (
	"fmt"
	"os"

	"github.com/absolutelyright/server/internal/config"
	"github.com/absolutelyright/server/internal/gateway"
	"github.com/absolutelyright/server/internal/version"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration summary and database state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (commit %s)\n\n", version.Name, version.Version, version.Commit)

			if _, err := os.Stat(paths.Config); err != nil {
				fmt.Fprintf(out, "Config:    %s (not found, using defaults)\n", paths.Config)
			} else {
				fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			}
			fmt.Fprintf(out, "Server:    port=%d bind=%s static=%s\n",
				cfg.Server.Port, cfg.Server.Bind, cfg.Server.StaticDir)
			fmt.Fprintf(out, "Writes:    %s\n", gateway.NewGate(cfg.Auth.Secret).Mode())

			if cfg.Pageviews.Enabled {
				fmt.Fprintf(out, "Pageviews: %s\n", cfg.ResolvePageviewLog())
			} else {
				fmt.Fprintln(out, "Pageviews: disabled")
			}

			dbPath := cfg.Storage.ResolveDB()
			info, err := os.Stat(dbPath)
			if err != nil {
				fmt.Fprintf(out, "Database:  %s (not created yet)\n", dbPath)
			} else {
				db, days, err := openStore(cfg)
				if err != nil {
					fmt.Fprintf(out, "Database:  %s (error: %v)\n", dbPath, err)
				} else {
					defer db.Close()
					records := days.List(cmd.Context())
					schema := 0
					if versions, _ := db.AppliedVersions(); len(versions) > 0 {
						schema = versions[len(versions)-1]
					}
					fmt.Fprintf(out, "Database:  %s (%s, schema v%d, %s days)\n",
						dbPath, humanize.Bytes(uint64(info.Size())), schema, humanize.Comma(int64(len(records))))
					if len(records) > 0 {
						last := records[len(records)-1]
						fmt.Fprintf(out, "Latest:    %s total=%s patterns=%s\n",
							last.Day, humanize.Comma(int64(last.TotalMessages)), formatPatterns(last.Patterns))
					}
				}
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}
}

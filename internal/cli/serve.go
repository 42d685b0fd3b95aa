package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/absolutelyright/server/internal/accesslog"
	"github.com/absolutelyright/server/internal/config"
	"github.com/absolutelyright/server/internal/gateway"
	"github.com/absolutelyright/server/internal/hooks"
	"github.com/absolutelyright/server/internal/store"
	"github.com/absolutelyright/server/internal/version"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port        int
		bind        string
		static      string
		noPageviews bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			if static != "" {
				cfg.Server.StaticDir = static
			}
			if noPageviews {
				cfg.Pageviews.Enabled = false
			}

			if err := validate(cfg); err != nil {
				return err
			}

			db, days, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			hookMgr := hooks.NewManager(log)
			opts := []gateway.ServerOption{gateway.WithHooks(hookMgr)}
			if cfg.Pageviews.Enabled {
				opts = append(opts, gateway.WithPageviews(accesslog.New(cfg.ResolvePageviewLog(), log)))
			}

			srv := gateway.New(cfg, days, log, opts...)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("version", version.Version).
				Str("db", db.Path()).
				Msg("starting server")

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: lan, loopback, custom (overrides config)")
	cmd.Flags().StringVar(&static, "static", "", "static files directory (overrides config)")
	cmd.Flags().BoolVar(&noPageviews, "no-pageviews", false, "disable the homepage access log")

	return cmd
}

// validate logs every config issue and fails if there were any.
func validate(c config.Config) error {
	issues := config.Validate(&c)
	if len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return nil
}

// openStore opens (and migrates) the counts database selected by c.
func openStore(c config.Config) (*store.DB, *store.DayStore, error) {
	db, err := store.Open(c.Storage.ResolveDB(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, store.NewDayStore(db), nil
}

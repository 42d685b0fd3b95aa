package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/absolutelyright/server/internal/config"
	"github.com/absolutelyright/server/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	envFile  string

	// loaded at init time
	paths config.Paths
	cfg   config.Config
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "absolutelyright",
		Short: "Per-day pattern counter server",
		Long:  "absolutelyright counts named phrase patterns per calendar day and serves them over a small HTTP API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			if err := loadDotenv(envFile, filepath.Join(paths.Base, ".env"), ".env"); err != nil {
				return err
			}
			cfg, err = config.Load(paths.Config)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			log = logging.New(logging.ConsoleWriter(os.Stderr, cfg.Logging.ConsoleStyle), cfg.Logging.Level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.absolutelyright/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading config")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newTodayCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadDotenv loads an explicit dotenv file, which must exist, or else every
// default candidate that does. Variables already in the environment win.
func loadDotenv(explicit string, candidates ...string) error {
	if explicit != "" {
		return godotenv.Load(explicit)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
	}
	return err
}

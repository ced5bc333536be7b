package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"surveyops/internal/config"
	"surveyops/internal/logging"
	"surveyops/internal/store"
)

var (
	configPath string
	schemaPath string

	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:          "surveyops",
	Short:        "Drone survey mission toolkit",
	Long:         "surveyops plans survey flight paths, simulates missions and serves the mission dashboard.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, closer, err := logging.NewWithOptions(c.LogOptions())
		if err != nil {
			return err
		}
		cfg, logCloser = c, closer
		slog.SetDefault(log)
		cmd.SetContext(logging.NewContext(cmd.Context(), log))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// loadConfig reads the config file. A missing default file is not an error;
// the built-in defaults plus environment overrides are used instead.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) && !cmd.Flag("config").Changed {
		c := config.Default()
		return c, c.ApplyEnv()
	}
	return config.Load(configPath, schemaPath)
}

func openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, store.WithPathOptions(cfg.PathOptions()...))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/surveyops.yaml", "Path to configuration YAML")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "Path to CUE schema file (defaults to the built-in schema)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(dashboardCmd)
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sevigo/commit-digest/internal/config"
	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/db"
	"github.com/sevigo/commit-digest/internal/logger"
	"github.com/sevigo/commit-digest/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "commit-digest-cli",
	Short: "commit-digest-cli is the command-line interface for commit-digest.",
	Long: `A CLI for inspecting and administering the commit-digest job queue: queue statistics,
job listing, manual retries and cancellations, and rendering stored commit summaries.`,
	SilenceUsage: true,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("db-driver", "", "Override DB_DRIVER (postgres or sqlite3)")
	rootCmd.PersistentFlags().String("db-path", "", "Override DB_PATH for the sqlite3 driver")

	for flag, key := range map[string]string{
		"output":    "CLI_OUTPUT",
		"no-color":  "CLI_NO_COLOR",
		"db-driver": "DB_DRIVER",
		"db-path":   "DB_PATH",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			slog.Error("Error binding flag", "flag", flag, "error", err)
			os.Exit(1)
		}
	}
}

// initConfig reads in ENV variables if set.
func initConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if viper.GetBool("CLI_NO_COLOR") {
		color.NoColor = true
	}
}

// cliEnv is what the commands work against: the same database the service uses.
type cliEnv struct {
	cfg      *config.Config
	logger   *slog.Logger
	jobs     storage.JobStore
	commits  core.CommitStore
	projects core.ProjectStore
	out      io.Writer
	format   string
}

func openEnv(cmd *cobra.Command) (*cliEnv, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if v := viper.GetString("DB_DRIVER"); v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v := viper.GetString("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// CLI logs go to stderr so they never mix with json or yaml output.
	log := logger.NewLogger(cfg.Logging, os.Stderr)

	conn, cleanup, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	format, err := parseFormat(viper.GetString("CLI_OUTPUT"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &cliEnv{
		cfg:      cfg,
		logger:   log,
		jobs:     storage.NewJobStore(conn.DB),
		commits:  storage.NewCommitStore(conn.DB),
		projects: storage.NewProjectStore(conn.DB),
		out:      cmd.OutOrStdout(),
		format:   format,
	}, cleanup, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

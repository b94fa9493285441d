// Package cmd provides the spendctl commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"spendplan/internal/cli"
	"spendplan/internal/config"
	"spendplan/internal/log"
)

var (
	flagEnvFile string
	flagPolicy  string
	flagDebug   bool
	flagCompact bool
)

// app is opened by the root PersistentPreRunE for commands that need the
// stores, and closed again after the command ran.
var app *cli.App

var rootCmd = &cobra.Command{
	Use:   "spendctl",
	Short: "Forecast spending and plan savings goals from the command line",
	Long: `spendctl runs the spendplan services in-process against the configured
record and model stores. It reads the same environment as the server.

Example:
  spendctl seed --file testdata/seed.yaml
  spendctl train --user alice
  spendctl forecast --user alice
  spendctl budget --user alice`,
	SilenceUsage:      true,
	PersistentPreRunE: openApp,
}

// Execute runs the root command and releases the stores it opened.
func Execute() error {
	err := rootCmd.Execute()
	if cerr := closeApp(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "env file to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&flagPolicy, "policy", "", "policy TOML file (overrides POLICY_FILE)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "compact", false, "print JSON on one line")
}

// needsApp reports whether cmd reads or writes the stores.
func needsApp(cmd *cobra.Command) bool {
	return cmd.Annotations["offline"] != "true"
}

func loadSettings() (*config.Config, config.Policy, *log.Logger, error) {
	if flagEnvFile != "" {
		if err := godotenv.Load(flagEnvFile); err != nil {
			return nil, config.Policy{}, nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		cli.LoadEnvFile()
	}

	lc := log.ConfigFromEnv(log.ComponentCLI)
	lc.Output = os.Stderr
	if flagDebug {
		lc.Level = slog.LevelDebug
	}
	logger := log.New(lc)

	cfg := config.Load()
	if flagPolicy != "" {
		cfg.PolicyFile = flagPolicy
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Policy{}, nil, err
	}
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, config.Policy{}, nil, err
	}
	return cfg, policy, logger, nil
}

func openApp(cmd *cobra.Command, _ []string) error {
	if !needsApp(cmd) {
		return nil
	}
	cfg, policy, logger, err := loadSettings()
	if err != nil {
		return err
	}
	app, err = cli.OpenApp(cmd.Context(), cfg, policy, logger)
	if err != nil {
		return err
	}
	logger.Debug("Backends opened",
		"data_backend", cfg.DataBackend,
		"model_backend", cfg.ModelBackend,
		"job_backend", cfg.JobBackend)
	return nil
}

func closeApp() error {
	if app == nil {
		return nil
	}
	err := app.Close(context.Background())
	app = nil
	return err
}

// printJSON writes v to out, indented unless --compact is set.
func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	if !flagCompact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func userFlag(cmd *cobra.Command) (string, error) {
	user, _ := cmd.Flags().GetString("user")
	user = strings.TrimSpace(user)
	if user == "" {
		return "", fmt.Errorf("--user is required")
	}
	return user, nil
}

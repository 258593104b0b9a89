// Package cmd defines the CLI commands for the scorer executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/competitor"
	"github.com/JakeFAU/ai-readiness-scorer/internal/config"
	"github.com/JakeFAU/ai-readiness-scorer/internal/logging"
	"github.com/JakeFAU/ai-readiness-scorer/internal/server"
)

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType struct{}

// runtime is what every subcommand receives from the root pre-run hook.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// App is the surface commands use from the built application. Tests swap
// newApp for a fake.
type App interface {
	Run(ctx context.Context) error
	Sweep(ctx context.Context) (competitor.SweepResult, error)
	Close()
}

var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return server.Build(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "scorer",
		Short: "AI-readiness scoring service.",
		Long: `scorer ingests crawl batches, scores every page for technical, content,
AI-readiness, and performance quality, and monitors competitor domains.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKeyType{}, runtime{cfg: cfg, logger: logger}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML/JSON/TOML); env vars use the AIREADY_ prefix")

	cmd.AddCommand(newServeCmd(), newSweepCmd(), newScoreCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (runtime, error) {
	rt, ok := ctx.Value(runtimeKeyType{}).(runtime)
	if !ok {
		return runtime{}, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

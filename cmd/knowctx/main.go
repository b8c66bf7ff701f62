// Package main implements the knowctx CLI: management and inspection of the
// knowledge-context store, plus a compose command that assembles the context
// for a chat turn the same way the serving path does.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"knowctx/internal/config"
	"knowctx/internal/logging"
	"knowctx/internal/store"
)

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "knowctx",
	Short: "knowctx - budgeted multi-tier knowledge context for chat turns",
	Long: `knowctx assembles the knowledge context injected into each model call.

Three tiers share one token budget in priority order:
  agent   - the active agent's curated knowledge (capped at 1/3 of budget)
  thread  - entries attached to the conversation thread
  global  - the account-wide library, matched across every known
            representation of the thread's owning account

Entries are selected newest-first; an oversized entry is skipped, never a
reason to stop, so one huge document cannot starve the rest of the budget.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return logging.Initialize(workspace, cfg.Logging.Options())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func loadConfig() (*config.Config, error) {
	if workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine workspace: %w", err)
		}
		workspace = cwd
	}
	return config.Load(workspace)
}

// openStore loads the configuration and opens the local store.
func openStore() (*config.Config, *store.LocalStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	s, err := store.NewLocalStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return cfg, s, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: cwd)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

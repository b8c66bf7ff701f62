// Compose and stats commands.
package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"knowctx/internal/identity"
	"knowctx/internal/knowledge"
	"knowctx/internal/usage"
)

var (
	composeThread string
	composeAgent  string
	composeBudget int
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Assemble the knowledge context for a chat turn",
	Long: `Assemble the knowledge context exactly as the serving path would:
agent tier first (capped at a third of the budget), then thread, then the
account-wide global tier with whatever budget remains.

Prints the composed text, or "(no context)" when every tier came up empty.`,
	RunE: runCompose,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and usage statistics",
	RunE:  runStats,
}

func runCompose(cmd *cobra.Command, args []string) error {
	cfg, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	budget := composeBudget
	if budget <= 0 {
		budget = cfg.Context.DefaultBudget
	}

	recorder := usage.NewRecorder(s)
	defer recorder.Close()

	composer := knowledge.NewComposer(s, identity.NewResolver(s),
		knowledge.WithUsageRecorder(recorder))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	text, ok := composer.Compose(ctx, composeThread, composeAgent, budget)
	if !ok {
		logger.Info("No context available",
			zap.String("thread", composeThread),
			zap.String("agent", composeAgent))
		fmt.Println("(no context)")
		return nil
	}

	fmt.Println(text)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.Stats()
	if err != nil {
		return err
	}

	fmt.Println("Store statistics")
	fmt.Println(strings.Repeat("-", 40))
	tables := make([]string, 0, len(stats))
	for table := range stats {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Printf("%-20s %d\n", table, stats[table])
	}

	totals, err := s.UsageTotals()
	if err != nil {
		return err
	}
	if len(totals) > 0 {
		fmt.Println("\nTokens injected per entry")
		fmt.Println(strings.Repeat("-", 40))
		ids := make([]string, 0, len(totals))
		for id := range totals {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("%-40s %d\n", id, totals[id])
		}
	}
	return nil
}

func init() {
	composeCmd.Flags().StringVar(&composeThread, "thread", "", "Thread id (required)")
	composeCmd.Flags().StringVar(&composeAgent, "agent", "", "Active agent id (optional)")
	composeCmd.Flags().IntVar(&composeBudget, "budget", 0, "Token budget (default from config)")
	_ = composeCmd.MarkFlagRequired("thread")
}

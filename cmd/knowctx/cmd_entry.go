// Entry management commands: add, list, deactivate, and the thread/account
// mapping surface the identity resolver depends on.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"knowctx/internal/knowledge"
)

var (
	entryScope       string
	entryScopeKey    string
	entryName        string
	entryDescription string
	entryContent     string
	entryFile        string
	entryUsage       string
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage knowledge entries",
}

var entryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a knowledge entry to a tier",
	Long: `Add a knowledge entry.

The scope selects the tier: agent, thread, or global. For global entries the
scope key is the owning account representation (raw reference or personal
account canonical form - the aggregator matches either).

Example:
  knowctx entry add --scope agent --key agent-7 --name "Refund policy" \
    --content "Refunds within 30 days..." --usage always`,
	RunE: runEntryAdd,
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries for a scope, newest first",
	RunE:  runEntryList,
}

var entryDeactivateCmd = &cobra.Command{
	Use:   "deactivate <entry-id>",
	Short: "Deactivate an entry so it is never selected again",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntryDeactivate,
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage thread-account links",
}

var threadLinkCmd = &cobra.Command{
	Use:   "link <thread-id> <account-ref>",
	Short: "Record which account owns a thread",
	Args:  cobra.ExactArgs(2),
	RunE:  runThreadLink,
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage personal-account mappings",
}

var accountMapCmd = &cobra.Command{
	Use:   "map <account-ref> <canonical>",
	Short: "Map a raw account reference to its personal-account canonical form",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountMap,
}

func runEntryAdd(cmd *cobra.Command, args []string) error {
	content := entryContent
	if entryFile != "" {
		data, err := os.ReadFile(entryFile)
		if err != nil {
			return fmt.Errorf("failed to read content file: %w", err)
		}
		content = string(data)
	}

	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.PutEntry(entryScope, knowledge.Entry{
		ScopeKey:     entryScopeKey,
		Name:         entryName,
		Description:  entryDescription,
		Content:      content,
		UsageContext: knowledge.UsageContext(entryUsage),
		IsActive:     true,
	})
	if err != nil {
		return err
	}

	logger.Info("Entry stored",
		zap.String("id", id),
		zap.String("scope", entryScope),
		zap.String("key", entryScopeKey))
	fmt.Println(id)
	return nil
}

func runEntryList(cmd *cobra.Command, args []string) error {
	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entries, err := s.ListEntries(ctx, entryScope, entryScopeKey)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No entries found.")
		return nil
	}

	fmt.Printf("Entries for %s/%s\n", entryScope, entryScopeKey)
	fmt.Println(strings.Repeat("-", 60))
	for _, e := range entries {
		status := "active"
		if !e.IsActive {
			status = "inactive"
		}
		fmt.Printf("%s  %-10s %-10s %s\n", e.ID, e.UsageContext, status, e.Name)
	}
	return nil
}

func runEntryDeactivate(cmd *cobra.Command, args []string) error {
	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.DeactivateEntry(args[0]); err != nil {
		return err
	}
	logger.Info("Entry deactivated", zap.String("id", args[0]))
	return nil
}

func runThreadLink(cmd *cobra.Command, args []string) error {
	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.LinkThread(args[0], args[1]); err != nil {
		return err
	}
	logger.Info("Thread linked", zap.String("thread", args[0]), zap.String("account", args[1]))
	return nil
}

func runAccountMap(cmd *cobra.Command, args []string) error {
	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.PutPersonalAccount(args[0], args[1]); err != nil {
		return err
	}
	logger.Info("Account mapped", zap.String("ref", args[0]), zap.String("canonical", args[1]))
	return nil
}

func init() {
	entryAddCmd.Flags().StringVar(&entryScope, "scope", "", "Tier: agent, thread, or global")
	entryAddCmd.Flags().StringVar(&entryScopeKey, "key", "", "Scope key (agent id, thread id, or owner representation)")
	entryAddCmd.Flags().StringVar(&entryName, "name", "", "Entry name (required)")
	entryAddCmd.Flags().StringVar(&entryDescription, "description", "", "Optional description")
	entryAddCmd.Flags().StringVar(&entryContent, "content", "", "Entry content")
	entryAddCmd.Flags().StringVar(&entryFile, "file", "", "Read content from file")
	entryAddCmd.Flags().StringVar(&entryUsage, "usage", "always", "Usage context: always, contextual, or on_request")
	_ = entryAddCmd.MarkFlagRequired("scope")
	_ = entryAddCmd.MarkFlagRequired("key")
	_ = entryAddCmd.MarkFlagRequired("name")

	entryListCmd.Flags().StringVar(&entryScope, "scope", "", "Tier: agent, thread, or global")
	entryListCmd.Flags().StringVar(&entryScopeKey, "key", "", "Scope key")
	_ = entryListCmd.MarkFlagRequired("scope")
	_ = entryListCmd.MarkFlagRequired("key")

	entryCmd.AddCommand(entryAddCmd)
	entryCmd.AddCommand(entryListCmd)
	entryCmd.AddCommand(entryDeactivateCmd)
	threadCmd.AddCommand(threadLinkCmd)
	accountCmd.AddCommand(accountMapCmd)
}

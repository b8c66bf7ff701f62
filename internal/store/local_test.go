package store

import (
	"context"
	"testing"
	"time"

	"knowctx/internal/knowledge"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create local store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewLocalStore(t *testing.T) {
	s := newTestStore(t)

	if s.GetDB() == nil {
		t.Error("GetDB returned nil")
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	for _, table := range []string{"knowledge_entries", "threads", "personal_accounts", "usage_log"} {
		if _, ok := stats[table]; !ok {
			t.Errorf("Stats missing table: %s", table)
		}
	}
}

func TestPutEntryValidation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name  string
		scope string
		entry knowledge.Entry
	}{
		{"UnknownScope", "workspace", knowledge.Entry{ScopeKey: "k", Name: "n", Content: "c"}},
		{"MissingName", ScopeAgent, knowledge.Entry{ScopeKey: "k", Content: "c"}},
		{"MissingContent", ScopeAgent, knowledge.Entry{ScopeKey: "k", Name: "n"}},
		{"MissingScopeKey", ScopeAgent, knowledge.Entry{Name: "n", Content: "c"}},
		{"BadUsageContext", ScopeAgent, knowledge.Entry{ScopeKey: "k", Name: "n", Content: "c", UsageContext: "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.PutEntry(tt.scope, tt.entry); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestPutEntryDefaults(t *testing.T) {
	s := newTestStore(t)

	id, err := s.PutEntry(ScopeAgent, knowledge.Entry{
		ScopeKey: "agent-1",
		Name:     "entry",
		Content:  "content",
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("PutEntry failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected generated id")
	}

	entries, err := s.AgentEntries(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("AgentEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].UsageContext != knowledge.UsageAlways {
		t.Errorf("Expected default usage context always, got %s", entries[0].UsageContext)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestTierFetchFiltersIneligible(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	put := func(id string, usage knowledge.UsageContext, active bool) {
		t.Helper()
		if _, err := s.PutEntry(ScopeThread, knowledge.Entry{
			ID:           id,
			ScopeKey:     "thread-1",
			Name:         id,
			Content:      "content",
			UsageContext: usage,
			IsActive:     active,
		}); err != nil {
			t.Fatalf("PutEntry %s failed: %v", id, err)
		}
	}

	put("always", knowledge.UsageAlways, true)
	put("contextual", knowledge.UsageContextual, true)
	put("on-request", knowledge.UsageOnRequest, true)
	put("inactive", knowledge.UsageAlways, false)

	entries, err := s.ThreadEntries(ctx, "thread-1")
	if err != nil {
		t.Fatalf("ThreadEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 eligible entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.ID == "on-request" || e.ID == "inactive" {
			t.Errorf("Ineligible entry %s leaked into tier fetch", e.ID)
		}
	}
}

func TestTierFetchOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	put := func(id string, createdAt time.Time) {
		t.Helper()
		if _, err := s.PutEntry(ScopeThread, knowledge.Entry{
			ID:        id,
			ScopeKey:  "thread-1",
			Name:      id,
			Content:   "content",
			IsActive:  true,
			CreatedAt: createdAt,
		}); err != nil {
			t.Fatalf("PutEntry %s failed: %v", id, err)
		}
	}

	put("old", base.Add(-time.Hour))
	put("tie-b", base)
	put("tie-a", base)
	put("new", base.Add(time.Hour))

	for i := 0; i < 3; i++ {
		entries, err := s.ThreadEntries(ctx, "thread-1")
		if err != nil {
			t.Fatalf("ThreadEntries failed: %v", err)
		}
		got := make([]string, len(entries))
		for j, e := range entries {
			got[j] = e.ID
		}
		want := []string{"new", "tie-a", "tie-b", "old"}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("Order mismatch at call %d: got %v, want %v", i, got, want)
			}
		}
	}
}

func TestGlobalEntriesUnion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	put := func(id, owner string, createdAt time.Time) {
		t.Helper()
		if _, err := s.PutEntry(ScopeGlobal, knowledge.Entry{
			ID:        id,
			ScopeKey:  owner,
			Name:      id,
			Content:   "content",
			IsActive:  true,
			CreatedAt: createdAt,
		}); err != nil {
			t.Fatalf("PutEntry %s failed: %v", id, err)
		}
	}

	put("raw-old", "acct-raw", base.Add(-time.Hour))
	put("personal-new", "acct-personal", base.Add(time.Hour))
	put("raw-mid", "acct-raw", base)

	entries, err := s.GlobalEntries(ctx, []string{"acct-raw", "acct-personal"})
	if err != nil {
		t.Fatalf("GlobalEntries failed: %v", err)
	}

	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.ID
	}
	want := []string{"personal-new", "raw-mid", "raw-old"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Union order mismatch: got %v, want %v", got, want)
		}
	}

	// The same representation twice must not duplicate entries.
	entries, err = s.GlobalEntries(ctx, []string{"acct-raw", "acct-raw"})
	if err != nil {
		t.Fatalf("GlobalEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 deduped entries, got %d", len(entries))
	}
}

func TestDeactivateEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.PutEntry(ScopeAgent, knowledge.Entry{
		ScopeKey: "agent-1", Name: "entry", Content: "content", IsActive: true,
	})
	if err != nil {
		t.Fatalf("PutEntry failed: %v", err)
	}

	if err := s.DeactivateEntry(id); err != nil {
		t.Fatalf("DeactivateEntry failed: %v", err)
	}

	entries, err := s.AgentEntries(ctx, "agent-1")
	if err != nil {
		t.Fatalf("AgentEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Deactivated entry still selected: %d entries", len(entries))
	}

	if err := s.DeactivateEntry("no-such-entry"); err == nil {
		t.Error("Expected error deactivating unknown entry")
	}
}

func TestThreadAccountLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, found, err := s.ThreadAccount(ctx, "missing"); err != nil || found {
		t.Errorf("Expected not-found without error, got found=%v err=%v", found, err)
	}

	if err := s.LinkThread("thread-1", "acct-raw"); err != nil {
		t.Fatalf("LinkThread failed: %v", err)
	}

	ref, found, err := s.ThreadAccount(ctx, "thread-1")
	if err != nil || !found {
		t.Fatalf("ThreadAccount failed: found=%v err=%v", found, err)
	}
	if ref != "acct-raw" {
		t.Errorf("Expected acct-raw, got %s", ref)
	}

	// Relinking replaces the reference.
	if err := s.LinkThread("thread-1", "acct-other"); err != nil {
		t.Fatalf("LinkThread replace failed: %v", err)
	}
	ref, _, _ = s.ThreadAccount(ctx, "thread-1")
	if ref != "acct-other" {
		t.Errorf("Expected acct-other after relink, got %s", ref)
	}
}

func TestPersonalAccountLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, found, err := s.PersonalAccount(ctx, "missing"); err != nil || found {
		t.Errorf("Expected not-found without error, got found=%v err=%v", found, err)
	}

	if err := s.PutPersonalAccount("acct-raw", "acct-personal"); err != nil {
		t.Fatalf("PutPersonalAccount failed: %v", err)
	}

	canonical, found, err := s.PersonalAccount(ctx, "acct-raw")
	if err != nil || !found {
		t.Fatalf("PersonalAccount failed: found=%v err=%v", found, err)
	}
	if canonical != "acct-personal" {
		t.Errorf("Expected acct-personal, got %s", canonical)
	}
}

func TestRecordUsageTotals(t *testing.T) {
	s := newTestStore(t)

	for _, tokens := range []int{10, 15} {
		if err := s.RecordUsage("entry-1", "thread-1", tokens); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}
	if err := s.RecordUsage("entry-2", "thread-1", 7); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	totals, err := s.UsageTotals()
	if err != nil {
		t.Fatalf("UsageTotals failed: %v", err)
	}
	if totals["entry-1"] != 25 {
		t.Errorf("Expected 25 tokens for entry-1, got %d", totals["entry-1"])
	}
	if totals["entry-2"] != 7 {
		t.Errorf("Expected 7 tokens for entry-2, got %d", totals["entry-2"])
	}
}

func TestFetchCancelledContext(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.ThreadEntries(ctx, "thread-1"); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

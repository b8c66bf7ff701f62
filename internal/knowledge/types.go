// Package knowledge implements budgeted multi-tier knowledge-context assembly.
// Given a conversation thread and optionally an active agent, it decides which
// stored knowledge entries to inject into the next model call, in what order,
// and how much of each, under a hard token ceiling shared by three tiers
// (agent, thread, account-wide global).
package knowledge

import (
	"context"
	"sort"
	"time"
)

// =============================================================================
// SECTION 1: Entry Model
// =============================================================================

// UsageContext classifies when an entry is eligible for injection.
type UsageContext string

const (
	// UsageAlways entries are injected whenever their tier runs.
	UsageAlways UsageContext = "always"
	// UsageContextual entries are injected whenever their tier runs; the
	// distinction from UsageAlways is surfaced to the model, not to selection.
	UsageContextual UsageContext = "contextual"
	// UsageOnRequest entries are never auto-injected. They are served through
	// a separate on-demand path.
	UsageOnRequest UsageContext = "on_request"
)

// ValidUsageContexts are the allowed usage_context values.
var ValidUsageContexts = map[UsageContext]bool{
	UsageAlways:     true,
	UsageContextual: true,
	UsageOnRequest:  true,
}

// Entry is one stored piece of knowledge. This subsystem only reads entries;
// creation and mutation belong to the ingestion side.
type Entry struct {
	ID          string
	ScopeKey    string // thread id, agent id, or account representation
	Name        string // required, non-empty
	Description string // optional sub-heading
	Content     string // required, non-empty payload
	// ContentTokens is an optional precomputed estimate. Zero means
	// "compute from Content on demand".
	ContentTokens int
	UsageContext  UsageContext
	IsActive      bool
	CreatedAt     time.Time
}

// Eligible reports whether the entry may be auto-injected. Suppliers filter
// on the same predicate, but the selector re-checks rather than trusting them.
func (e Entry) Eligible() bool {
	return e.IsActive && (e.UsageContext == UsageAlways || e.UsageContext == UsageContextual)
}

// SortNewestFirst orders entries by CreatedAt descending with entry ID
// ascending as the tie-break, so repeated calls over the same rows produce
// the same order.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

// =============================================================================
// SECTION 2: Collaborator Interfaces
// =============================================================================

// EntrySource yields candidate entries for each tier, active and eligible,
// newest-first. Implemented by the store layer.
type EntrySource interface {
	// AgentEntries returns candidates scoped to one agent.
	AgentEntries(ctx context.Context, agentID string) ([]Entry, error)
	// ThreadEntries returns candidates scoped to one thread.
	ThreadEntries(ctx context.Context, threadID string) ([]Entry, error)
	// GlobalEntries returns candidates whose stored owner equals any of the
	// given account representations, unioned newest-first.
	GlobalEntries(ctx context.Context, ownerReps []string) ([]Entry, error)
}

// IdentityResolver maps a thread to the set of account representation strings
// under which global entries might be filed. An empty set means the thread has
// no resolvable account and the global tier is skipped.
type IdentityResolver interface {
	Resolve(ctx context.Context, threadID string) ([]string, error)
}

// UsageRecorder receives one record per injected block. Implementations must
// not block; failures are theirs to swallow.
type UsageRecorder interface {
	Record(entryID, consumerID string, tokens int)
}

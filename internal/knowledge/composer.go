package knowledge

import (
	"context"
	"strings"

	"knowctx/internal/logging"
)

// =============================================================================
// Context Composition
// =============================================================================

// DefaultBudget is the total token ceiling used when the caller passes a
// non-positive budget. Product defaults range 4k-16k; the largest wins.
const DefaultBudget = 16000

// agentShareDivisor caps the agent tier at 1/3 of the total budget so an
// agent's curated knowledge cannot crowd out the thread and global tiers.
const agentShareDivisor = 3

// Tier banners. Each opens its section with one fixed instructional sentence
// telling the downstream model how to treat the material.
const (
	agentBanner = "AGENT KNOWLEDGE BASE\n" +
		"The entries below are this agent's curated knowledge; treat them as authoritative guidance for this conversation."
	threadBanner = "KNOWLEDGE BASE CONTEXT\n" +
		"The entries below were attached to this conversation thread; use them to inform your responses."
	globalBanner = "GLOBAL KNOWLEDGE BASE\n" +
		"The entries below come from the account-wide knowledge library; apply them when they are relevant to the request."
)

// Composer assembles the knowledge context for one chat turn. It runs the
// three tiers strictly in sequence because each later tier consumes the
// budget the earlier ones left behind.
//
// A Composer carries no per-call state; concurrent Compose calls for
// different threads are safe.
type Composer struct {
	source   EntrySource
	resolver IdentityResolver
	usage    UsageRecorder
	est      *Estimator
}

// Option configures a Composer.
type Option func(*Composer)

// WithUsageRecorder attaches a fire-and-forget usage recorder. Without one,
// no usage is recorded.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(c *Composer) { c.usage = r }
}

// WithEstimator overrides the default token estimator.
func WithEstimator(est *Estimator) Option {
	return func(c *Composer) { c.est = est }
}

// NewComposer creates a Composer over the given entry source and identity
// resolver.
func NewComposer(source EntrySource, resolver IdentityResolver, opts ...Option) *Composer {
	c := &Composer{
		source:   source,
		resolver: resolver,
		est:      NewEstimator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the injected context for the next model call on threadID.
// agentID is empty when no agent is active. A non-positive totalBudget falls
// back to DefaultBudget.
//
// The second return is false when every tier produced nothing - "searched and
// found nothing", distinguishable from empty text.
//
// A fetch failure on one tier never aborts the others; the failed tier simply
// contributes nothing. Cancellation mid-fetch behaves the same way: a partial
// best-effort result beats stalling the chat turn.
func (c *Composer) Compose(ctx context.Context, threadID, agentID string, totalBudget int) (string, bool) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "Compose")
	defer timer.Stop()

	if totalBudget <= 0 {
		totalBudget = DefaultBudget
	}

	consumed := 0
	var sections []string

	// Agent tier: most specific, runs first, capped to a third of the total.
	if agentID != "" {
		sel := c.runTier(ctx, "agent", totalBudget/agentShareDivisor, func(ctx context.Context) ([]Entry, error) {
			return c.source.AgentEntries(ctx, agentID)
		})
		consumed += sel.TokensUsed
		if len(sel.Blocks) > 0 {
			sections = append(sections, renderSection(agentBanner, sel))
			c.recordUsage(sel, threadID)
		}
	}

	// Thread tier: whatever the agent tier left.
	sel := c.runTier(ctx, "thread", totalBudget-consumed, func(ctx context.Context) ([]Entry, error) {
		return c.source.ThreadEntries(ctx, threadID)
	})
	consumed += sel.TokensUsed
	if len(sel.Blocks) > 0 {
		sections = append(sections, renderSection(threadBanner, sel))
		c.recordUsage(sel, threadID)
	}

	// Global tier: identity resolution is itself I/O, so skip it entirely
	// when no budget remains.
	if remaining := totalBudget - consumed; remaining > 0 {
		if reps := c.resolveOwner(ctx, threadID); len(reps) > 0 {
			sel := c.runTier(ctx, "global", remaining, func(ctx context.Context) ([]Entry, error) {
				return c.source.GlobalEntries(ctx, reps)
			})
			consumed += sel.TokensUsed
			if len(sel.Blocks) > 0 {
				sections = append(sections, renderSection(globalBanner, sel))
				c.recordUsage(sel, threadID)
			}
		}
	}

	if len(sections) == 0 {
		logging.KnowledgeDebug("Compose: no context for thread=%s agent=%s", threadID, agentID)
		return "", false
	}

	logging.Knowledge("Composed context: thread=%s agent=%s sections=%d tokens=%d/%d",
		threadID, agentID, len(sections), consumed, totalBudget)
	return strings.Join(sections, "\n\n"), true
}

// runTier fetches one tier's candidates and selects within the sub-budget.
// Fetch errors degrade to an empty tier.
func (c *Composer) runTier(ctx context.Context, tier string, budget int, fetch func(context.Context) ([]Entry, error)) Selection {
	if budget <= 0 {
		return Selection{}
	}

	candidates, err := fetch(ctx)
	if err != nil {
		logging.Get(logging.CategoryKnowledge).Warn("Tier %s fetch failed, skipping: %v", tier, err)
		return Selection{}
	}

	sel := selectWithinBudget(candidates, budget, c.est)
	logging.KnowledgeDebug("Tier %s: %d/%d candidates selected, %d/%d tokens",
		tier, len(sel.Blocks), len(candidates), sel.TokensUsed, budget)
	return sel
}

// resolveOwner returns the thread's account representation set, or nil when
// the thread has no resolvable account or resolution failed.
func (c *Composer) resolveOwner(ctx context.Context, threadID string) []string {
	reps, err := c.resolver.Resolve(ctx, threadID)
	if err != nil {
		logging.Get(logging.CategoryIdentity).Warn("Identity resolution failed for thread %s: %v", threadID, err)
		return nil
	}
	return reps
}

// recordUsage emits one fire-and-forget usage record per accepted block.
func (c *Composer) recordUsage(sel Selection, consumerID string) {
	if c.usage == nil {
		return
	}
	for _, b := range sel.Blocks {
		c.usage.Record(b.Entry.ID, consumerID, b.Tokens)
	}
}

// renderSection concatenates a tier's blocks under its banner.
func renderSection(banner string, sel Selection) string {
	parts := append([]string{banner}, sel.Texts()...)
	return strings.Join(parts, "\n\n")
}

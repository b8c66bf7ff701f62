package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRespectsBudget(t *testing.T) {
	candidates := []Entry{
		entryN("e1", "first", 50, 0),
		entryN("e2", "second", 50, 1),
		entryN("e3", "third", 50, 2),
	}

	sel := selectWithinBudget(candidates, 120, NewEstimator())

	require.Len(t, sel.Blocks, 2)
	assert.LessOrEqual(t, sel.TokensUsed, 120, "consumed tokens never exceed the budget")
	assert.Equal(t, 100, sel.TokensUsed)
}

func TestSelectSkipsOversizedWithoutStopping(t *testing.T) {
	// A huge entry ahead of small ones must not block them.
	candidates := []Entry{
		entryN("huge", "huge", 9000, 0),
		entryN("small1", "small one", 10, 1),
		entryN("small2", "small two", 10, 2),
	}

	sel := selectWithinBudget(candidates, 100, NewEstimator())

	require.Len(t, sel.Blocks, 2)
	assert.Equal(t, "small1", sel.Blocks[0].Entry.ID)
	assert.Equal(t, "small2", sel.Blocks[1].Entry.ID)
	assert.Equal(t, 20, sel.TokensUsed)
}

func TestSelectRunningTotalSkips(t *testing.T) {
	// Each entry fits alone but the third overflows the running total;
	// the fourth, smaller one still gets in.
	candidates := []Entry{
		entryN("a", "a", 40, 0),
		entryN("b", "b", 40, 1),
		entryN("c", "c", 40, 2),
		entryN("d", "d", 15, 3),
	}

	sel := selectWithinBudget(candidates, 100, NewEstimator())

	require.Len(t, sel.Blocks, 3)
	assert.Equal(t, []string{"a", "b", "d"}, selectedIDs(sel))
	assert.Equal(t, 95, sel.TokensUsed)
}

func TestSelectRechecksEligibility(t *testing.T) {
	inactive := entryN("inactive", "inactive", 10, 0)
	inactive.IsActive = false
	onRequest := entryN("onreq", "on request", 10, 1)
	onRequest.UsageContext = UsageOnRequest
	contextual := entryN("ctx", "contextual", 10, 2)
	contextual.UsageContext = UsageContextual

	sel := selectWithinBudget([]Entry{inactive, onRequest, contextual}, 1000, NewEstimator())

	require.Len(t, sel.Blocks, 1)
	assert.Equal(t, "ctx", sel.Blocks[0].Entry.ID)
}

func TestSelectZeroBudget(t *testing.T) {
	sel := selectWithinBudget([]Entry{entryN("e", "e", 1, 0)}, 0, NewEstimator())
	assert.Empty(t, sel.Blocks)
	assert.Zero(t, sel.TokensUsed)
}

func TestSelectUsesPrecomputedTokens(t *testing.T) {
	cheapOnPaper := entryN("pre", "pre", 500, 0)
	cheapOnPaper.ContentTokens = 10

	sel := selectWithinBudget([]Entry{cheapOnPaper}, 20, NewEstimator())

	require.Len(t, sel.Blocks, 1)
	assert.Equal(t, 10, sel.TokensUsed)
}

func TestFormatBlockWithDescription(t *testing.T) {
	entry := Entry{
		Name:        "Refund policy",
		Description: "How refunds work",
		Content:     "Refunds are issued within 30 days.",
	}

	got := formatBlock(entry)
	want := "### Refund policy\nHow refunds work\n\nRefunds are issued within 30 days."
	assert.Equal(t, want, got)
}

func TestFormatBlockWithoutDescription(t *testing.T) {
	entry := Entry{
		Name:    "Refund policy",
		Content: "Refunds are issued within 30 days.",
	}

	got := formatBlock(entry)
	want := "### Refund policy\n\nRefunds are issued within 30 days."
	assert.Equal(t, want, got, "empty description leaves no blank artifact")
}

func TestSortNewestFirstTieBreak(t *testing.T) {
	same := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: "b", CreatedAt: same},
		{ID: "a", CreatedAt: same},
		{ID: "c", CreatedAt: same.Add(time.Hour)},
	}

	for i := 0; i < 5; i++ {
		shuffled := append([]Entry(nil), entries...)
		SortNewestFirst(shuffled)
		ids := make([]string, len(shuffled))
		for j, e := range shuffled {
			ids[j] = e.ID
		}
		assert.Equal(t, []string{"c", "a", "b"}, ids, "identical timestamps break ties by id ascending")
	}
}

func selectedIDs(sel Selection) []string {
	ids := make([]string, len(sel.Blocks))
	for i, b := range sel.Blocks {
		ids[i] = b.Entry.ID
	}
	return ids
}

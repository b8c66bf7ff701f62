package knowledge

import (
	"strings"

	"knowctx/internal/logging"
)

// =============================================================================
// Tier Selection
// =============================================================================

// SelectedBlock is one formatted entry accepted into the context.
type SelectedBlock struct {
	Entry  Entry
	Text   string
	Tokens int
}

// Selection is the budget-respecting result of one tier pass.
type Selection struct {
	Blocks     []SelectedBlock
	TokensUsed int
}

// Texts returns the formatted block texts in selection order.
func (s Selection) Texts() []string {
	texts := make([]string, len(s.Blocks))
	for i, b := range s.Blocks {
		texts[i] = b.Text
	}
	return texts
}

// selectWithinBudget walks candidates in the supplied order (newest first)
// and accepts every entry that fits the remaining budget.
//
// Oversized candidates are skipped, never a reason to stop: a single huge
// uploaded document must not starve the smaller entries behind it. The same
// holds for the running-total check, so a budget with room for ten small
// entries after one huge one still receives all ten.
func selectWithinBudget(candidates []Entry, remainingBudget int, est *Estimator) Selection {
	var sel Selection
	if remainingBudget <= 0 {
		return sel
	}

	skipped := 0
	for _, entry := range candidates {
		if !entry.Eligible() {
			continue
		}

		cost := est.EntryCost(entry)
		if cost > remainingBudget || sel.TokensUsed+cost > remainingBudget {
			skipped++
			continue
		}

		sel.Blocks = append(sel.Blocks, SelectedBlock{
			Entry:  entry,
			Text:   formatBlock(entry),
			Tokens: cost,
		})
		sel.TokensUsed += cost
	}

	if skipped > 0 {
		logging.KnowledgeDebug("Tier selection skipped %d oversized entries (budget=%d, used=%d)",
			skipped, remainingBudget, sel.TokensUsed)
	}
	return sel
}

// formatBlock renders one entry: a name heading, the description as a lead-in
// paragraph when present, then the content. An empty description leaves no
// blank artifact.
func formatBlock(entry Entry) string {
	var sb strings.Builder
	sb.WriteString("### ")
	sb.WriteString(entry.Name)
	sb.WriteString("\n")
	if desc := strings.TrimSpace(entry.Description); desc != "" {
		sb.WriteString(desc)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(entry.Content)
	return sb.String()
}

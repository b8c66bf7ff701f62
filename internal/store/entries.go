package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"knowctx/internal/knowledge"
	"knowctx/internal/logging"
)

// Scope types for knowledge entries.
const (
	ScopeAgent  = "agent"
	ScopeThread = "thread"
	ScopeGlobal = "global"
)

const entryColumns = "id, scope_key, name, description, content, content_tokens, usage_context, is_active, created_at"

// eligibleOrder is shared by every tier fetch: active entries with an
// auto-injectable usage context, newest first, entry id ascending on ties so
// repeated fetches are deterministic.
const eligibleWhere = `is_active = 1 AND usage_context IN ('always', 'contextual')`
const eligibleOrder = `ORDER BY created_at DESC, id ASC`

// PutEntry stores a knowledge entry under the given scope type. A missing ID
// gets a fresh UUID; a zero CreatedAt gets the current time. Returns the
// entry ID.
func (s *LocalStore) PutEntry(scopeType string, e knowledge.Entry) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "PutEntry")
	defer timer.Stop()

	switch scopeType {
	case ScopeAgent, ScopeThread, ScopeGlobal:
	default:
		return "", fmt.Errorf("unknown scope type %q", scopeType)
	}
	if e.Name == "" {
		return "", fmt.Errorf("entry name required")
	}
	if e.Content == "" {
		return "", fmt.Errorf("entry content required")
	}
	if e.ScopeKey == "" {
		return "", fmt.Errorf("entry scope key required")
	}
	if e.UsageContext == "" {
		e.UsageContext = knowledge.UsageAlways
	}
	if !knowledge.ValidUsageContexts[e.UsageContext] {
		return "", fmt.Errorf("invalid usage context %q", e.UsageContext)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO knowledge_entries
		 (id, scope_type, scope_key, name, description, content, content_tokens, usage_context, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, scopeType, e.ScopeKey, e.Name, e.Description, e.Content,
		e.ContentTokens, string(e.UsageContext), boolToInt(e.IsActive), e.CreatedAt,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store entry %s: %v", e.Name, err)
		return "", fmt.Errorf("failed to store entry: %w", err)
	}

	logging.StoreDebug("Stored entry: id=%s scope=%s/%s name=%s", e.ID, scopeType, e.ScopeKey, e.Name)
	return e.ID, nil
}

// DeactivateEntry marks an entry inactive so it is never selected again.
func (s *LocalStore) DeactivateEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE knowledge_entries SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s not found", id)
	}
	logging.StoreDebug("Deactivated entry %s", id)
	return nil
}

// ListEntries returns all entries for a scope, newest first, regardless of
// eligibility. Management surface, not a tier fetch.
func (s *LocalStore) ListEntries(ctx context.Context, scopeType, scopeKey string) ([]knowledge.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries
		 WHERE scope_type = ? AND scope_key = ? `+eligibleOrder,
		scopeType, scopeKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// AgentEntries returns eligible candidates scoped to one agent, newest first.
func (s *LocalStore) AgentEntries(ctx context.Context, agentID string) ([]knowledge.Entry, error) {
	return s.fetchTier(ctx, ScopeAgent, agentID)
}

// ThreadEntries returns eligible candidates scoped to one thread, newest first.
func (s *LocalStore) ThreadEntries(ctx context.Context, threadID string) ([]knowledge.Entry, error) {
	return s.fetchTier(ctx, ScopeThread, threadID)
}

// GlobalEntries returns eligible global candidates whose stored owner equals
// any of the given representations. One query per representation; the union
// is deduped by entry id and re-sorted newest first.
func (s *LocalStore) GlobalEntries(ctx context.Context, ownerReps []string) ([]knowledge.Entry, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GlobalEntries")
	defer timer.Stop()

	seen := make(map[string]bool)
	var union []knowledge.Entry
	for _, rep := range ownerReps {
		entries, err := s.fetchTier(ctx, ScopeGlobal, rep)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			union = append(union, e)
		}
	}

	knowledge.SortNewestFirst(union)
	logging.StoreDebug("GlobalEntries: %d entries across %d representations", len(union), len(ownerReps))
	return union, nil
}

func (s *LocalStore) fetchTier(ctx context.Context, scopeType, scopeKey string) ([]knowledge.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries
		 WHERE scope_type = ? AND scope_key = ? AND `+eligibleWhere+` `+eligibleOrder,
		scopeType, scopeKey,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to fetch %s entries for %s: %v", scopeType, scopeKey, err)
		return nil, fmt.Errorf("failed to fetch %s entries: %w", scopeType, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]knowledge.Entry, error) {
	var entries []knowledge.Entry
	for rows.Next() {
		var e knowledge.Entry
		var usage string
		var active int
		if err := rows.Scan(&e.ID, &e.ScopeKey, &e.Name, &e.Description, &e.Content,
			&e.ContentTokens, &usage, &active, &e.CreatedAt); err != nil {
			continue
		}
		e.UsageContext = knowledge.UsageContext(usage)
		e.IsActive = active != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

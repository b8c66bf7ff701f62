package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"knowctx/internal/logging"
)

// The identity.AccountDirectory implementation. Thread and personal-account
// rows are written by the surrounding product; the CLI exposes a small
// management surface for both.

// ThreadAccount returns the raw account reference owning the thread.
func (s *LocalStore) ThreadAccount(ctx context.Context, threadID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ref string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_ref FROM threads WHERE id = ?`, threadID).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up thread account: %w", err)
	}
	return ref, true, nil
}

// PersonalAccount returns the canonical form of the personal-account record
// keyed by the raw account reference.
func (s *LocalStore) PersonalAccount(ctx context.Context, ref string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var canonical string
	err := s.db.QueryRowContext(ctx,
		`SELECT canonical FROM personal_accounts WHERE account_ref = ?`, ref).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up personal account: %w", err)
	}
	return canonical, true, nil
}

// LinkThread records (or replaces) the account reference owning a thread.
func (s *LocalStore) LinkThread(threadID, accountRef string) error {
	if threadID == "" || accountRef == "" {
		return fmt.Errorf("thread id and account ref required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO threads (id, account_ref) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET account_ref = excluded.account_ref`,
		threadID, accountRef,
	)
	if err != nil {
		return fmt.Errorf("failed to link thread: %w", err)
	}
	logging.StoreDebug("Linked thread %s to account %s", threadID, accountRef)
	return nil
}

// PutPersonalAccount records (or replaces) a personal-account mirror for a
// raw account reference.
func (s *LocalStore) PutPersonalAccount(accountRef, canonical string) error {
	if accountRef == "" || canonical == "" {
		return fmt.Errorf("account ref and canonical form required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO personal_accounts (account_ref, canonical) VALUES (?, ?)
		 ON CONFLICT(account_ref) DO UPDATE SET canonical = excluded.canonical`,
		accountRef, canonical,
	)
	if err != nil {
		return fmt.Errorf("failed to store personal account: %w", err)
	}
	logging.StoreDebug("Mapped account %s to canonical %s", accountRef, canonical)
	return nil
}

// RecordUsage appends one usage-log row. Called from the usage recorder's
// background worker, never from the composition path directly.
func (s *LocalStore) RecordUsage(entryID, consumerID string, tokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO usage_log (entry_id, consumer_id, tokens) VALUES (?, ?, ?)`,
		entryID, consumerID, tokens,
	)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// UsageTotals returns the total tokens recorded per entry.
func (s *LocalStore) UsageTotals() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT entry_id, SUM(tokens) FROM usage_log GROUP BY entry_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var entryID string
		var tokens int64
		if err := rows.Scan(&entryID, &tokens); err != nil {
			continue
		}
		totals[entryID] = tokens
	}
	return totals, rows.Err()
}

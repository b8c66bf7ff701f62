// Package identity resolves a thread's owning account into the set of string
// representations under which global knowledge entries might be filed.
//
// Two historical schema migrations stored the owner column first as a strict
// UUID and later as a free-form string, so a global entry's owner may match
// either the raw account reference or the canonical form of the personal
// account that mirrors it. Resolution tries every representation it can find;
// the aggregator then matches by set membership instead of single equality.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"knowctx/internal/logging"
)

// AccountDirectory is the external lookup collaborator, implemented by the
// store layer.
type AccountDirectory interface {
	// ThreadAccount returns the raw account reference owning the thread.
	// found is false when the thread does not exist.
	ThreadAccount(ctx context.Context, threadID string) (ref string, found bool, err error)
	// PersonalAccount returns the canonical form of the personal-account
	// record whose identifier equals ref. found is false when absent.
	PersonalAccount(ctx context.Context, ref string) (canonical string, found bool, err error)
}

// Resolver maps thread IDs to account representation sets.
type Resolver struct {
	directory AccountDirectory
	group     singleflight.Group
}

// NewResolver creates a Resolver over the given directory.
func NewResolver(directory AccountDirectory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve returns the representation set for the thread's account.
//
// An absent thread yields an empty set and no error: callers treat empty as
// "no global tier possible". The personal-account lookup is best-effort
// enrichment; any failure there degrades silently to the canonical form of
// the raw reference alone. When the thread exists the set holds at least one
// string.
func (r *Resolver) Resolve(ctx context.Context, threadID string) ([]string, error) {
	// Concurrent turns on the same thread resolve once; the lookup is
	// read-only so sharing the result is safe.
	v, err, _ := r.group.Do(threadID, func() (interface{}, error) {
		return r.resolve(ctx, threadID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (r *Resolver) resolve(ctx context.Context, threadID string) ([]string, error) {
	timer := logging.StartTimer(logging.CategoryIdentity, "Resolve")
	defer timer.Stop()

	rawRef, found, err := r.directory.ThreadAccount(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !found {
		logging.IdentityDebug("Thread %s not found, no account representations", threadID)
		return nil, nil
	}

	reps := []string{Canonical(rawRef)}

	canonical, found, err := r.directory.PersonalAccount(ctx, rawRef)
	if err != nil {
		// Enrichment only. The raw canonical form still stands.
		logging.Get(logging.CategoryIdentity).Warn(
			"Personal account lookup failed for ref %s: %v (using raw form only)", rawRef, err)
	} else if found {
		reps = appendUnique(reps, Canonical(canonical))
	}

	logging.IdentityDebug("Resolved thread %s to %d representations", threadID, len(reps))
	return reps, nil
}

// Canonical normalizes one account reference. UUID-shaped references collapse
// to the lowercase hyphenated form regardless of how they were written;
// anything else passes through trimmed.
func Canonical(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if id, err := uuid.Parse(trimmed); err == nil {
		return id.String()
	}
	return trimmed
}

func appendUnique(reps []string, rep string) []string {
	if rep == "" {
		return reps
	}
	for _, existing := range reps {
		if existing == rep {
			return reps
		}
	}
	return append(reps, rep)
}

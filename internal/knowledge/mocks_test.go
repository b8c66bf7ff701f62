package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeSource serves canned entries per tier and can be told to fail.
type fakeSource struct {
	agent  map[string][]Entry
	thread map[string][]Entry
	global map[string][]Entry // keyed by owner representation

	agentErr  error
	threadErr error
	globalErr error

	agentCalls  int
	threadCalls int
	globalCalls int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		agent:  make(map[string][]Entry),
		thread: make(map[string][]Entry),
		global: make(map[string][]Entry),
	}
}

func (f *fakeSource) AgentEntries(ctx context.Context, agentID string) ([]Entry, error) {
	f.agentCalls++
	if f.agentErr != nil {
		return nil, f.agentErr
	}
	return sorted(f.agent[agentID]), nil
}

func (f *fakeSource) ThreadEntries(ctx context.Context, threadID string) ([]Entry, error) {
	f.threadCalls++
	if f.threadErr != nil {
		return nil, f.threadErr
	}
	return sorted(f.thread[threadID]), nil
}

func (f *fakeSource) GlobalEntries(ctx context.Context, ownerReps []string) ([]Entry, error) {
	f.globalCalls++
	if f.globalErr != nil {
		return nil, f.globalErr
	}
	seen := make(map[string]bool)
	var union []Entry
	for _, rep := range ownerReps {
		for _, e := range f.global[rep] {
			if !seen[e.ID] {
				seen[e.ID] = true
				union = append(union, e)
			}
		}
	}
	return sorted(union), nil
}

func sorted(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	SortNewestFirst(out)
	return out
}

// fakeResolver returns a fixed representation set.
type fakeResolver struct {
	reps  []string
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, threadID string) ([]string, error) {
	f.calls++
	return f.reps, f.err
}

// captureRecorder collects usage records.
type captureRecorder struct {
	mu      sync.Mutex
	records []usageRecord
}

type usageRecord struct {
	entryID    string
	consumerID string
	tokens     int
}

func (c *captureRecorder) Record(entryID, consumerID string, tokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, usageRecord{entryID, consumerID, tokens})
}

func (c *captureRecorder) all() []usageRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]usageRecord(nil), c.records...)
}

// entryN builds an active, always-injected entry with content sized to cost
// roughly `tokens` under the default estimator. Age steps keep creation order
// explicit: higher age = older.
func entryN(id, name string, tokens int, age int) Entry {
	content := make([]byte, tokens*4)
	for i := range content {
		content[i] = 'x'
	}
	return Entry{
		ID:           id,
		ScopeKey:     "scope",
		Name:         name,
		Content:      string(content),
		UsageContext: UsageAlways,
		IsActive:     true,
		CreatedAt:    baseTime.Add(-time.Duration(age) * time.Minute),
	}
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var errStorage = fmt.Errorf("storage unavailable")

// Package usage records which knowledge entries were injected into context
// and how many tokens each consumed. Recording is fire-and-forget: a logging
// outage must never delay or fail a composition.
package usage

import (
	"sync"

	"knowctx/internal/logging"
)

// Sink is where usage records land, implemented by the store layer.
type Sink interface {
	RecordUsage(entryID, consumerID string, tokens int) error
}

// record is one pending usage event.
type record struct {
	entryID    string
	consumerID string
	tokens     int
}

// defaultQueueSize bounds the pending-record buffer. A full buffer drops new
// records rather than blocking the composition path.
const defaultQueueSize = 256

// Recorder drains usage records to a Sink on a background worker.
type Recorder struct {
	sink    Sink
	queue   chan record
	done    chan struct{}
	once    sync.Once
	dropped int64
	mu      sync.Mutex
}

// NewRecorder starts a recorder over the given sink.
func NewRecorder(sink Sink) *Recorder {
	r := &Recorder{
		sink:  sink,
		queue: make(chan record, defaultQueueSize),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues one usage event. Never blocks; a full queue drops the
// record and the loss is logged, not surfaced.
func (r *Recorder) Record(entryID, consumerID string, tokens int) {
	select {
	case r.queue <- record{entryID: entryID, consumerID: consumerID, tokens: tokens}:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		logging.Get(logging.CategoryUsage).Warn("Usage queue full, dropped record for entry %s (total dropped: %d)",
			entryID, dropped)
	}
}

// Dropped returns how many records were lost to a full queue.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close drains pending records and stops the worker. Safe to call more than
// once.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.queue)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		if err := r.sink.RecordUsage(rec.entryID, rec.consumerID, rec.tokens); err != nil {
			// Best effort only.
			logging.Get(logging.CategoryUsage).Warn("Failed to record usage for entry %s: %v", rec.entryID, err)
			continue
		}
		logging.UsageDebug("Recorded usage: entry=%s consumer=%s tokens=%d",
			rec.entryID, rec.consumerID, rec.tokens)
	}
}

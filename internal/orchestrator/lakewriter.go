package orchestrator

import (
	"context"

	"github.com/fluxcore/engine/internal/lake"
)

// lakeQueueDepth bounds how many pending records the writer goroutine
// will buffer before Enqueue starts dropping the newest arrivals.
const lakeQueueDepth = 256

// lakeWriter defers ConfidenceLake writes off the request path: a
// single goroutine drains a bounded channel, so mmap I/O never sits
// between a request and its response (spec.md §9's Lake-write
// blocking-vs-deferred open question, resolved toward deferred here).
// The admission law itself still lives in lake.Lake.Put — this is
// purely a scheduling decision, not a second admission gate.
type lakeWriter struct {
	l  *lake.Lake
	ch chan lake.Record
}

func newLakeWriter(l *lake.Lake) *lakeWriter {
	w := &lakeWriter{l: l, ch: make(chan lake.Record, lakeQueueDepth)}
	go w.run()
	return w
}

func (w *lakeWriter) run() {
	for rec := range w.ch {
		// Put's own error is unobservable from here by design: a failed
		// background write must never surface on a request that has
		// already returned its Output.
		_ = w.l.Put(context.Background(), rec)
	}
}

// Enqueue schedules rec for persistence without blocking the caller.
// A full queue drops rec silently, the same admission-suppression
// contract Put already offers for low-signal records.
func (w *lakeWriter) Enqueue(rec lake.Record) {
	select {
	case w.ch <- rec:
	default:
	}
}

// Close stops accepting new records. It does not wait for the drain
// goroutine to finish; callers that need a clean shutdown drain ch
// externally before calling Close.
func (w *lakeWriter) Close() { close(w.ch) }

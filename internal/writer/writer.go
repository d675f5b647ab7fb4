// Package writer is the background, best-effort sink for solver snapshots
// (§4.11 of SPEC_FULL.md): one JSON record per submitted tick, serialized off
// the solver's own goroutine so no core operation ever blocks on I/O. Sized
// down from internal/parallel.WorkerPool's dynamic multi-worker design to the
// single-consumer case this module actually needs — one file, written in
// tick order, with a bounded queue that drops rather than blocks when the
// sink falls behind.
package writer

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gitrdm/tempoplan/pkg/plandb"
)

// record is the JSON-on-the-wire shape of one submitted snapshot, per §6.3's
// "serializes... for operator observation only; not consumed by any core
// component" — the format is this package's own choice, not a spec-mandated
// wire format.
type record struct {
	Tick      uint64                `json:"tick"`
	StepCount int                   `json:"step_count"`
	Depth     int                   `json:"depth"`
	Decisions []string              `json:"decisions"`
	OpenFlaws []plandb.FlawSnapshot `json:"open_flaws"`
	Written   string                `json:"written_at"`
}

// Writer drains a bounded channel of snapshots into an io.Writer, one JSON
// object per line, on a single background goroutine.
type Writer struct {
	queue   chan plandb.Snapshot
	out     io.Writer
	log     zerolog.Logger
	wg      sync.WaitGroup
	closeCh chan struct{}
	once    sync.Once

	mu      sync.Mutex
	dropped uint64
}

// New starts a Writer draining into out, with a queue of the given capacity.
// A non-positive capacity defaults to 64, enough to absorb a short burst of
// ticks between consumer wakeups without the producer ever stalling.
func New(out io.Writer, capacity int, log zerolog.Logger) *Writer {
	if capacity <= 0 {
		capacity = 64
	}
	w := &Writer{
		queue:   make(chan plandb.Snapshot, capacity),
		out:     out,
		log:     log,
		closeCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Submit enqueues a snapshot for serialization. It never blocks: if the
// queue is full the snapshot is dropped and the drop is counted, consistent
// with §5's "no operation may suspend" rule — the solver only ever submits,
// it never waits on this sink.
func (w *Writer) Submit(snap plandb.Snapshot) {
	select {
	case w.queue <- snap:
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		w.log.Warn().Uint64("tick", snap.Tick).Msg("partial-plan writer queue full, snapshot dropped")
	}
}

// Dropped returns the number of snapshots discarded so far because the queue
// was full.
func (w *Writer) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Writer) run() {
	defer w.wg.Done()
	enc := json.NewEncoder(w.out)
	for {
		select {
		case snap, ok := <-w.queue:
			if !ok {
				return
			}
			w.writeOne(enc, snap)
		case <-w.closeCh:
			// Drain whatever is already queued before exiting so a graceful
			// Close doesn't lose snapshots submitted just before shutdown.
			for {
				select {
				case snap := <-w.queue:
					w.writeOne(enc, snap)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) writeOne(enc *json.Encoder, snap plandb.Snapshot) {
	rec := record{
		Tick:      snap.Tick,
		StepCount: snap.StepCount,
		Depth:     snap.Depth,
		Decisions: snap.Decisions,
		OpenFlaws: snap.OpenFlaws,
		Written:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := enc.Encode(rec); err != nil {
		w.log.Error().Err(err).Uint64("tick", snap.Tick).Msg("partial-plan writer encode failed")
	}
}

// Close tells the background goroutine to flush whatever is already queued
// and exit, and waits for it. Safe to call more than once. Submit is not
// blocked after Close: a snapshot submitted afterwards may still be queued,
// but it is never written.
func (w *Writer) Close() {
	w.once.Do(func() {
		close(w.closeCh)
	})
	w.wg.Wait()
}

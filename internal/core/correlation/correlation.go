// Package correlation joins two filtered event streams within a time window.
package correlation

import (
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/document"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
)

// ResultType is the nql_result_type of correlation results.
const ResultType = "correlation"

// Default limits.
const (
	DefaultBufferCap  = 10000
	DefaultEvictFloor = 100 * time.Millisecond
)

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	// BufferCap is the maximum number of entries per side.
	BufferCap int
	// EvictFloor is the shortest eviction interval.
	EvictFloor time.Duration
}

func (o Options) normalized() Options {
	if o.BufferCap <= 0 {
		o.BufferCap = DefaultBufferCap
	}
	if o.EvictFloor <= 0 {
		o.EvictFloor = DefaultEvictFloor
	}
	return o
}

// Stats reports buffer occupancy and counters.
type Stats struct {
	Left    int
	Right   int
	Matches int64
	Refused int64
	Evicted int64
}

type entry struct {
	evt *v1.Event
	at  int64
	seq uint64
}

// Engine buffers events matching either side of a correlate query and pairs
// them across sides. It is not safe for concurrent use.
type Engine struct {
	query *nql.Correlate
	opts  Options

	left  []entry
	right []entry
	seq   uint64
	stats Stats
}

// New creates an engine for q.
func New(q *nql.Correlate, opts Options) (*Engine, error) {
	if q == nil {
		return nil, fmt.Errorf("correlation: nil query")
	}
	if q.Window < 0 {
		return nil, fmt.Errorf("correlation: negative window %s", q.Window)
	}
	return &Engine{query: q, opts: opts.normalized()}, nil
}

// EvictInterval is how often Evict should run.
func (e *Engine) EvictInterval() time.Duration {
	if e.query.Window < e.opts.EvictFloor {
		return e.opts.EvictFloor
	}
	return e.query.Window
}

// Process tests evt against both sides. An event may match either, both or
// neither side. Each match is buffered and then paired with every entry of
// the opposite buffer within the window, so arrival order across sides does
// not matter. matched reports whether evt satisfied either side.
func (e *Engine) Process(evt *v1.Event) (matched bool, results []*v1.Event) {
	inLeft := e.query.Left.Match(evt.Payload)
	inRight := e.query.Right.Match(evt.Payload)
	if !inLeft && !inRight {
		return false, nil
	}

	e.seq++
	at := evt.UnixNano()
	if inLeft {
		e.left = e.buffer(e.left, "left", evt, at)
		for _, other := range e.right {
			if other.seq != e.seq && e.within(at, other.at) {
				results = append(results, e.result(evt, at, other.evt, other.at, evt.Timestamp))
			}
		}
	}
	if inRight {
		e.right = e.buffer(e.right, "right", evt, at)
		for _, other := range e.left {
			if other.seq != e.seq && e.within(other.at, at) {
				results = append(results, e.result(other.evt, other.at, evt, at, evt.Timestamp))
			}
		}
	}
	return true, results
}

// Evict drops buffered entries older than now − 2×window and returns how
// many were removed.
func (e *Engine) Evict(now int64) int {
	cutoff := now - 2*int64(e.query.Window)
	var n int
	e.left, n = evict(e.left, cutoff)
	removed := n
	e.right, n = evict(e.right, cutoff)
	removed += n
	e.stats.Evicted += int64(removed)
	return removed
}

// Reset releases both buffers.
func (e *Engine) Reset() {
	e.left = nil
	e.right = nil
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Left = len(e.left)
	s.Right = len(e.right)
	return s
}

func evict(buf []entry, cutoff int64) ([]entry, int) {
	kept := buf[:0]
	for _, en := range buf {
		if en.at >= cutoff {
			kept = append(kept, en)
		}
	}
	removed := len(buf) - len(kept)
	for i := len(kept); i < len(buf); i++ {
		buf[i] = entry{}
	}
	return kept, removed
}

// buffer appends a clone of evt unless the side is full. A refused event is
// still paired against the opposite side by the caller.
func (e *Engine) buffer(buf []entry, side string, evt *v1.Event, at int64) []entry {
	if len(buf) >= e.opts.BufferCap {
		e.stats.Refused++
		if e.stats.Refused == 1 {
			slog.Warn("[Correlation] buffer full; refusing events", "side", side, "cap", e.opts.BufferCap)
		} else {
			slog.Debug("[Correlation] buffer full", "side", side, "refused", e.stats.Refused)
		}
		return buf
	}
	return append(buf, entry{evt: evt.Clone(), at: at, seq: e.seq})
}

func (e *Engine) within(a, b int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= int64(e.query.Window)
}

// result pairs a left and a right entry. The result is stamped with the
// timestamp of the event that completed the pair.
func (e *Engine) result(left *v1.Event, leftAt int64, right *v1.Event, rightAt int64, ts uint64) *v1.Event {
	e.stats.Matches++
	return &v1.Event{
		Kind:      v1.KindCorrelation,
		Timestamp: ts,
		Payload: map[string]interface{}{
			"nql_result_type": ResultType,
			"window_ms":       e.query.Window.Milliseconds(),
			"left_event":      document.CloneMap(left.Payload),
			"right_event":     document.CloneMap(right.Payload),
			"time_diff_ms":    float64(leftAt-rightAt) / 1e6,
		},
	}
}

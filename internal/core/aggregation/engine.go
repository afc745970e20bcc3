// Package aggregation implements windowed aggregation for nQL aggregate
// queries: group-keyed, window-keyed buckets of running statistics and
// their flush lifecycle.
package aggregation

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/document"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
)

// ResultType is the nql_result_type of aggregation results.
const ResultType = "aggregation"

// Engine holds the buckets of one aggregate query. It is not safe for
// concurrent use.
type Engine struct {
	query *nql.Aggregate
	opts  Options
	aggs  []Aggregator

	buckets  map[bucketKey]*Bucket
	order    []*Bucket          // creation order; drives flush order
	sessions map[string]*Bucket // newest session per group
	stats    Stats
}

// New creates an engine for q.
func New(q *nql.Aggregate, opts Options) (*Engine, error) {
	if q == nil {
		return nil, fmt.Errorf("aggregation: nil query")
	}
	aggs := make([]Aggregator, len(q.Funcs))
	for i, fn := range q.Funcs {
		agg, ok := Operators[fn.Name]
		if !ok {
			return nil, fmt.Errorf("aggregation: unsupported function %q", fn.Name)
		}
		aggs[i] = agg
	}
	return &Engine{
		query:    q,
		opts:     opts.normalized(),
		aggs:     aggs,
		buckets:  make(map[bucketKey]*Bucket),
		sessions: make(map[string]*Bucket),
	}, nil
}

// FlushInterval is how often Flush should run; 0 means never.
func (e *Engine) FlushInterval() time.Duration {
	return FlushInterval(e.query.Window, e.opts.FlushFloor)
}

// Process folds evt into its buckets. matched reports whether evt passed the
// where clause. Results are returned only for windows of kind None, which
// emit after every update.
func (e *Engine) Process(evt *v1.Event) (matched bool, results []*v1.Event) {
	if !e.query.Where.Match(evt.Payload) {
		e.stats.EventsFiltered++
		return false, nil
	}

	group, values := e.groupKey(evt.Payload)
	t := evt.UnixNano()
	w := e.query.Window

	switch w.Kind {
	case nql.WindowNone:
		b := e.bucket(group, values, 0, openEnd)
		e.observe(b, t, evt.Payload)
		results = append(results, e.result(b, evt.Timestamp))

	case nql.WindowTumbling:
		start := BucketFor(t, w.Size)
		e.observe(e.bucket(group, values, start, start+int64(w.Size)), t, evt.Payload)

	case nql.WindowSliding:
		starts, refused := SlidingStarts(t, w.Size, w.Slide, e.opts.MaxSlidingWindows)
		if refused > 0 {
			e.refuse(refused)
		}
		for _, start := range starts {
			e.observe(e.bucket(group, values, start, start+int64(w.Size)), t, evt.Payload)
		}

	case nql.WindowSession:
		b := e.sessions[group]
		if b == nil || t-b.LastEventTime >= int64(w.Timeout) {
			b = e.bucket(group, values, t, t)
			e.sessions[group] = b
		}
		e.observe(b, t, evt.Payload)
		b.WindowEnd = b.LastEventTime + int64(w.Timeout)
	}
	return true, results
}

// Flush closes the windows that have elapsed at now (Unix nanoseconds) and
// returns their results in bucket creation order. Empty buckets are closed
// without a result.
func (e *Engine) Flush(now int64) []*v1.Event {
	var out []*v1.Event
	w := e.query.Window
	kept := make([]*Bucket, 0, len(e.order))

	for _, b := range e.order {
		switch w.Kind {
		case nql.WindowSession:
			if now-b.LastEventTime >= int64(w.Timeout) {
				out = e.appendResult(out, b)
				e.remove(b)
				continue
			}

		case nql.WindowSliding:
			if now >= b.WindowEnd {
				out = e.appendResult(out, b)
				e.remove(b)
				continue
			}

		case nql.WindowTumbling:
			if now < b.WindowEnd {
				break
			}
			out = e.appendResult(out, b)
			b.reset()
			start := BucketFor(now, w.Size)
			next := bucketKey{group: b.key.group, start: start}
			if next != b.key {
				delete(e.buckets, b.key)
				if _, taken := e.buckets[next]; taken {
					continue
				}
				b.key = next
				b.WindowStart = start
				b.WindowEnd = start + int64(w.Size)
				e.buckets[next] = b
			}
		}
		kept = append(kept, b)
	}
	e.order = kept
	return out
}

// Drain returns the results of every non-empty windowed bucket and releases
// all state. Windows of kind None have already emitted and yield nothing.
func (e *Engine) Drain() []*v1.Event {
	var out []*v1.Event
	if e.query.Window.Kind != nql.WindowNone {
		for _, b := range e.order {
			out = e.appendResult(out, b)
		}
	}
	e.order = nil
	e.buckets = make(map[bucketKey]*Bucket)
	e.sessions = make(map[string]*Bucket)
	return out
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Buckets = len(e.order)
	return s
}

// groupKey canonicalizes the group-by fields of payload.
func (e *Engine) groupKey(payload map[string]interface{}) (string, []string) {
	if len(e.query.GroupBy) == 0 {
		return "", nil
	}
	values := make([]string, len(e.query.GroupBy))
	for i, field := range e.query.GroupBy {
		v, _ := document.Lookup(payload, field)
		values[i] = document.Canonical(v)
	}
	return strings.Join(values, "\x1f"), values
}

func (e *Engine) bucket(group string, values []string, start, end int64) *Bucket {
	key := bucketKey{group: group, start: start}
	if b, ok := e.buckets[key]; ok {
		return b
	}
	b := &Bucket{
		GroupValues:   values,
		WindowStart:   start,
		WindowEnd:     end,
		LastEventTime: start,
		key:           key,
		accs:          make([]Accumulator, len(e.aggs)),
	}
	e.buckets[key] = b
	e.order = append(e.order, b)
	return b
}

func (e *Engine) remove(b *Bucket) {
	delete(e.buckets, b.key)
	if e.sessions[b.key.group] == b {
		delete(e.sessions, b.key.group)
	}
}

func (e *Engine) observe(b *Bucket, t int64, payload map[string]interface{}) {
	b.Count++
	if t > b.LastEventTime {
		b.LastEventTime = t
	}
	for i, fn := range e.query.Funcs {
		var (
			v       interface{}
			present bool
		)
		if fn.Field != "" {
			v, present = document.Lookup(payload, fn.Field)
		}
		e.aggs[i].Observe(&b.accs[i], v, present)
	}
	e.stats.Updates++
}

func (e *Engine) refuse(n int) {
	first := e.stats.WindowsRefused == 0
	e.stats.WindowsRefused += int64(n)
	if first {
		slog.Warn("[Aggregation] sliding window cap reached; extra windows refused",
			"max_windows", e.opts.MaxSlidingWindows, "refused", n)
		return
	}
	slog.Debug("[Aggregation] sliding windows refused", "refused", n, "total", e.stats.WindowsRefused)
}

func (e *Engine) appendResult(out []*v1.Event, b *Bucket) []*v1.Event {
	if b.Count == 0 {
		return out
	}
	return append(out, e.result(b, uint64(b.WindowEnd)))
}

// result renders b as an aggregation result event stamped ts.
func (e *Engine) result(b *Bucket, ts uint64) *v1.Event {
	metrics := make(map[string]interface{}, len(e.query.Funcs))
	for i, fn := range e.query.Funcs {
		metrics[fn.MetricName()] = e.aggs[i].Result(&b.accs[i], fn)
	}
	payload := map[string]interface{}{
		"nql_result_type": ResultType,
		"metrics":         metrics,
	}
	if len(e.query.GroupBy) > 0 {
		group := make(map[string]interface{}, len(e.query.GroupBy))
		for i, field := range e.query.GroupBy {
			group[field] = b.GroupValues[i]
		}
		payload["group"] = group
	}
	if e.query.Window.Kind != nql.WindowNone {
		payload["window"] = map[string]interface{}{
			"start_ns": b.WindowStart,
			"end_ns":   b.WindowEnd,
		}
	}
	e.stats.Emitted++
	return &v1.Event{Kind: v1.KindAggregation, Timestamp: ts, Payload: payload}
}

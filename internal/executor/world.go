// Package executor runs compiled nQL queries against events and owns the
// per-query state that aggregate and correlate queries accumulate.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/aggregation"
	"github.com/aevon-lab/nqlflow/internal/core/correlation"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
	"github.com/aevon-lab/nqlflow/internal/sink"
)

// ErrWorldClosed is returned by every World method after Close.
var ErrWorldClosed = errors.New("executor: world closed")

// DefaultCacheSize bounds the compiled query cache.
const DefaultCacheSize = 256

// Options configures a World. Zero values select the defaults.
type Options struct {
	CacheSize    int
	Aggregation  aggregation.Options
	Correlation  correlation.Options
	FlushOnClose bool
}

func (o Options) normalized() Options {
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	return o
}

// World holds one execution context per distinct query text and emits the
// events derived by those queries to its sink. A World is not safe for
// concurrent use; it expects a single owning goroutine.
type World struct {
	sink  sink.Sink
	opts  Options
	cache *nql.Cache

	byText  map[string]*execContext
	byQuery map[nql.Query]*execContext
	roots   []*execContext // one per distinct query
	order   []*execContext // roots and pipeline stages; drives housekeeping
	closed  bool

	newID func() string
}

// NewWorld creates a World emitting derived events to s. A nil sink
// discards them.
func NewWorld(s sink.Sink, opts Options) *World {
	if s == nil {
		s = sink.Discard
	}
	opts = opts.normalized()
	return &World{
		sink:    s,
		opts:    opts,
		cache:   nql.NewCache(opts.CacheSize),
		byText:  make(map[string]*execContext),
		byQuery: make(map[nql.Query]*execContext),
		newID:   uuid.NewString,
	}
}

// Compile returns the compiled form of text through the World's cache.
func (w *World) Compile(text string) (nql.Query, error) {
	return w.cache.Compile(text)
}

// Execute runs the query text against evt. The context for text is looked
// up by exact text, then by identity of its compiled form, and created on
// first use. The result reports whether evt satisfied the query, which is
// independent of whether derived events were emitted.
func (w *World) Execute(ctx context.Context, text string, evt *v1.Event) (bool, error) {
	if w.closed {
		return false, ErrWorldClosed
	}
	c, ok := w.byText[text]
	if !ok {
		q, err := w.cache.Compile(text)
		if err != nil {
			return false, err
		}
		if c, err = w.contextFor(text, q); err != nil {
			return false, err
		}
	}
	return w.run(ctx, c, evt), nil
}

// ExecuteCompiled runs q, compiled from text, against evt. The context is
// resolved the same way as in Execute, so it shares state with Execute calls
// for the same text. An empty text is keyed by the canonical form of q.
func (w *World) ExecuteCompiled(ctx context.Context, text string, q nql.Query, evt *v1.Event) (bool, error) {
	if w.closed {
		return false, ErrWorldClosed
	}
	if q == nil {
		return false, fmt.Errorf("executor: nil query")
	}
	if text == "" {
		text = q.String()
	}
	c, err := w.contextFor(text, q)
	if err != nil {
		return false, err
	}
	return w.run(ctx, c, evt), nil
}

// contextFor resolves the context for text, falling back to the compiled
// query's identity before creating a new one.
func (w *World) contextFor(text string, q nql.Query) (*execContext, error) {
	if c, ok := w.byText[text]; ok {
		w.byQuery[q] = c
		return c, nil
	}
	if c, ok := w.byQuery[q]; ok {
		w.byText[text] = c
		return c, nil
	}

	c, err := w.newContext(text, text, q)
	if err != nil {
		return nil, fmt.Errorf("executor: query %q: %w", text, err)
	}
	w.byText[text] = c
	w.byQuery[q] = c
	w.roots = append(w.roots, c)
	w.order = c.appendTree(w.order)
	slog.Debug("[Executor] Created execution context", "query", text, "kind", nql.KindOf(q))
	return c, nil
}

func (w *World) newContext(key, source string, q nql.Query) (*execContext, error) {
	c := &execContext{key: key, source: source, query: q}
	switch q := q.(type) {
	case *nql.Aggregate:
		engine, err := aggregation.New(q, w.opts.Aggregation)
		if err != nil {
			return nil, err
		}
		c.agg = engine
		c.interval = engine.FlushInterval()
	case *nql.Correlate:
		engine, err := correlation.New(q, w.opts.Correlation)
		if err != nil {
			return nil, err
		}
		c.corr = engine
		c.interval = engine.EvictInterval()
	case *nql.Pipeline:
		for i, stage := range q.Stages {
			sc, err := w.newContext(key+"\x00"+strconv.Itoa(i), source, stage)
			if err != nil {
				return nil, fmt.Errorf("stage %d: %w", i+1, err)
			}
			c.stages = append(c.stages, sc)
		}
	}
	return c, nil
}

// run evaluates c against evt and emits what its engines derive. Pipeline
// stages run in order and stop at the first stage evt does not satisfy.
func (w *World) run(ctx context.Context, c *execContext, evt *v1.Event) bool {
	c.executions++
	var (
		matched bool
		results []*v1.Event
	)
	switch q := c.query.(type) {
	case *nql.FilterQuery:
		matched = q.Filter.Match(evt.Payload)
	case *nql.Show:
		matched = q.Where.Match(evt.Payload)
	case *nql.Aggregate:
		matched, results = c.agg.Process(evt)
	case *nql.Correlate:
		matched, results = c.corr.Process(evt)
	case *nql.Pipeline:
		matched = true
		for _, stage := range c.stages {
			if !w.run(ctx, stage, evt) {
				matched = false
				break
			}
		}
	}
	if matched {
		c.matches++
	}
	w.emit(ctx, c, results)
	return matched
}

// emit stamps derived events with an id and the producing query and hands
// them to the sink in order. Sink failures are logged and do not stop the
// query.
func (w *World) emit(ctx context.Context, c *execContext, results []*v1.Event) {
	for _, evt := range results {
		if evt.ID == "" {
			evt.ID = w.newID()
		}
		evt.Source = c.source
		c.emitted++
		if err := w.sink.Emit(ctx, evt); err != nil {
			slog.Warn("[Executor] Sink rejected derived event",
				"query", c.source,
				"event_id", evt.ID,
				"error", err)
		}
	}
}

// Tick runs window flushes and buffer evictions whose interval has elapsed
// at now. Contexts without housekeeping are skipped.
func (w *World) Tick(ctx context.Context, now time.Time) error {
	if w.closed {
		return ErrWorldClosed
	}
	nowNs := now.UnixNano()
	for _, c := range w.order {
		if c.interval <= 0 || nowNs < c.nextDue {
			continue
		}
		w.housekeep(ctx, c, nowNs)
		c.nextDue = nowNs + int64(c.interval)
	}
	return nil
}

// Flush runs housekeeping for every context at now regardless of interval.
func (w *World) Flush(ctx context.Context, now time.Time) error {
	if w.closed {
		return ErrWorldClosed
	}
	nowNs := now.UnixNano()
	for _, c := range w.order {
		if c.interval > 0 {
			w.housekeep(ctx, c, nowNs)
			c.nextDue = nowNs + int64(c.interval)
		}
	}
	return nil
}

func (w *World) housekeep(ctx context.Context, c *execContext, now int64) {
	switch {
	case c.agg != nil:
		w.emit(ctx, c, c.agg.Flush(now))
	case c.corr != nil:
		if n := c.corr.Evict(now); n > 0 {
			slog.Debug("[Executor] Evicted correlation entries", "query", c.source, "evicted", n)
		}
	}
}

// Close releases every context. With FlushOnClose the remaining non-empty
// windows are emitted first. Close is idempotent.
func (w *World) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	for _, c := range w.order {
		switch {
		case c.agg != nil:
			remaining := c.agg.Drain()
			if w.opts.FlushOnClose {
				w.emit(ctx, c, remaining)
			}
		case c.corr != nil:
			c.corr.Reset()
		}
	}
	slog.Info("[Executor] World closed", "contexts", len(w.roots))
	w.closed = true
	w.roots = nil
	w.order = nil
	w.byText = nil
	w.byQuery = nil
	return nil
}

// ContextCount returns the number of live execution contexts, not counting
// pipeline stages.
func (w *World) ContextCount() int {
	return len(w.roots)
}

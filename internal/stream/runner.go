// Package stream runs the enabled queries over a live event stream on a
// single goroutine that owns the executor World.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
	"github.com/aevon-lab/nqlflow/internal/executor"
	"github.com/aevon-lab/nqlflow/internal/queries"
	"github.com/aevon-lab/nqlflow/internal/sink"
)

var (
	// ErrRunnerStopped is returned once the runner loop has exited.
	ErrRunnerStopped = errors.New("stream: runner stopped")
	// ErrBacklogFull is returned when Submit would block.
	ErrBacklogFull = errors.New("stream: backlog full")
)

// Options configures a Runner. Zero values select the defaults.
type Options struct {
	TickInterval  time.Duration
	BacklogSize   int
	ShutdownGrace time.Duration
	Now           func() time.Time

	// EventTime drives housekeeping from the newest event timestamp seen
	// instead of Now, for replaying recorded input.
	EventTime bool
}

func (o Options) normalized() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = 50 * time.Millisecond
	}
	if o.BacklogSize <= 0 {
		o.BacklogSize = 4096
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 30 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Status is a snapshot of the runner taken on its own goroutine.
type Status struct {
	Running   bool                    `json:"running"`
	Processed int64                   `json:"processed"`
	Matched   int64                   `json:"matched"`
	Dropped   int64                   `json:"dropped"`
	Backlog   int                     `json:"backlog"`
	Failed    []string                `json:"failed,omitempty"`
	Queries   []executor.ContextStats `json:"queries"`
}

type runQuery struct {
	def         queries.Definition
	passthrough bool
	failed      bool
}

// Runner feeds submitted events through every runnable query. Derived
// events reach the World's sink; events satisfying a filter or show query
// are projected and written to the passthrough sink.
type Runner struct {
	world       *executor.World
	queries     []*runQuery
	passthrough sink.Sink
	opts        Options

	events  chan *v1.Event
	calls   chan func()
	done    chan struct{}
	started atomic.Bool
	dropped atomic.Int64

	processed int64
	matched   int64
	watermark int64
}

// NewRunner creates a runner over defs. Definitions that are disabled or did
// not compile are skipped. A nil passthrough sink discards matches.
func NewRunner(world *executor.World, defs []queries.Definition, passthrough sink.Sink, opts Options) *Runner {
	if passthrough == nil {
		passthrough = sink.Discard
	}
	opts = opts.normalized()
	r := &Runner{
		world:       world,
		passthrough: passthrough,
		opts:        opts,
		events:      make(chan *v1.Event, opts.BacklogSize),
		calls:       make(chan func()),
		done:        make(chan struct{}),
	}
	for _, d := range defs {
		if !d.Runnable() {
			continue
		}
		r.queries = append(r.queries, &runQuery{def: d, passthrough: passesThrough(d.Compiled)})
	}
	return r
}

// passesThrough reports whether matching events are themselves the output,
// which holds for filter and show queries and pipelines made only of them.
func passesThrough(q nql.Query) bool {
	switch q := q.(type) {
	case *nql.FilterQuery, *nql.Show:
		return true
	case *nql.Pipeline:
		for _, st := range q.Stages {
			if !passesThrough(st) {
				return false
			}
		}
		return true
	}
	return false
}

// Submit enqueues evt without blocking.
func (r *Runner) Submit(evt *v1.Event) error {
	select {
	case <-r.done:
		return ErrRunnerStopped
	default:
	}
	select {
	case r.events <- evt:
		return nil
	default:
		r.dropped.Add(1)
		eventsDroppedTotal.Inc()
		return ErrBacklogFull
	}
}

// SubmitWait enqueues evt, blocking until there is room, the runner stops
// or ctx is done.
func (r *Runner) SubmitWait(ctx context.Context, evt *v1.Event) error {
	select {
	case <-r.done:
		return ErrRunnerStopped
	default:
	}
	select {
	case r.events <- evt:
		return nil
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the loop until ctx is cancelled. On cancellation it processes
// the events already queued, closes the World (flushing open windows when
// configured) and returns. Start may be called once.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("stream: runner already started")
	}
	defer close(r.done)

	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()

	slog.Info("[Runner] Starting stream runner",
		"queries", len(r.queries),
		"tick_interval", r.opts.TickInterval,
		"backlog_size", r.opts.BacklogSize,
	)

	for {
		select {
		case evt := <-r.events:
			r.process(ctx, evt)
		case <-ticker.C:
			if err := r.world.Tick(ctx, r.now()); err != nil {
				slog.Error("[Runner] Housekeeping failed", "error", err)
			}
		case fn := <-r.calls:
			fn()
		case <-ctx.Done():
			slog.Info("[Runner] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), r.opts.ShutdownGrace)
			defer cancel()

			drained := r.drain(shutdownCtx)
			if err := r.world.Close(shutdownCtx); err != nil {
				slog.Error("[Runner] Closing world failed", "error", err)
			}
			slog.Info("[Runner] Final drain complete",
				"drained", drained,
				"processed", r.processed,
				"dropped", r.dropped.Load(),
			)
			return nil
		}
	}
}

// drain processes queued events until the queue is empty or ctx ends.
func (r *Runner) drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case <-ctx.Done():
			slog.Warn("[Runner] Drain interrupted", "remaining", len(r.events))
			return n
		case evt := <-r.events:
			r.process(ctx, evt)
			n++
		default:
			return n
		}
	}
}

func (r *Runner) now() time.Time {
	if r.opts.EventTime {
		return time.Unix(0, r.watermark)
	}
	return r.opts.Now()
}

func (r *Runner) process(ctx context.Context, evt *v1.Event) {
	r.processed++
	eventsProcessedTotal.Inc()
	backlogEvents.Set(float64(len(r.events)))
	if ts := evt.UnixNano(); ts > r.watermark {
		r.watermark = ts
	}
	for _, q := range r.queries {
		if q.failed {
			continue
		}
		ok, err := r.world.ExecuteCompiled(ctx, q.def.Query, q.def.Compiled, evt)
		if err != nil {
			q.failed = true
			queryFailuresTotal.WithLabelValues(q.def.Name).Inc()
			slog.Error("[Runner] Query disabled after execution failure",
				"query", q.def.Name,
				"error", err)
			continue
		}
		if !ok {
			continue
		}
		r.matched++
		queryMatchesTotal.WithLabelValues(q.def.Name).Inc()
		if q.passthrough {
			r.forward(ctx, q, evt)
		}
	}
}

// forward writes the projection of evt selected by q. The copy is sourced
// to the query's name.
func (r *Runner) forward(ctx context.Context, q *runQuery, evt *v1.Event) {
	out := *evt
	out.Source = q.def.Name
	out.Payload = nql.Project(q.def.Compiled, evt.Payload)
	if err := r.passthrough.Emit(ctx, &out); err != nil {
		slog.Warn("[Runner] Passthrough sink rejected event",
			"query", q.def.Name,
			"event_id", evt.ID,
			"error", err)
	}
}

// Status snapshots the runner. Before Start it reports queue state only.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	if !r.started.Load() {
		return Status{Dropped: r.dropped.Load(), Backlog: len(r.events)}, nil
	}

	result := make(chan Status, 1)
	snapshot := func() {
		st := Status{
			Running:   true,
			Processed: r.processed,
			Matched:   r.matched,
			Dropped:   r.dropped.Load(),
			Backlog:   len(r.events),
			Queries:   r.world.Stats(),
		}
		for _, q := range r.queries {
			if q.failed {
				st.Failed = append(st.Failed, q.def.Name)
			}
		}
		result <- st
	}

	select {
	case r.calls <- snapshot:
	case <-r.done:
		return Status{}, ErrRunnerStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-result:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Done is closed when Start returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

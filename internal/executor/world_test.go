package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
	"github.com/aevon-lab/nqlflow/internal/sink"
)

type recorder struct {
	events []*v1.Event
}

func (r *recorder) Emit(_ context.Context, evt *v1.Event) error {
	r.events = append(r.events, evt)
	return nil
}

func evt(atMs int64, payload map[string]interface{}) *v1.Event {
	return &v1.Event{Kind: v1.KindLog, Timestamp: uint64(atMs) * uint64(time.Millisecond), Payload: payload}
}

func TestWorld_ReusesContextForSameText(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	const text = "aggregate count()"
	for i := 0; i < 3; i++ {
		ok, err := w.Execute(ctx, text, evt(int64(i), map[string]interface{}{}))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	require.Len(t, rec.events, 3)
	last := rec.events[2]
	assert.Equal(t, int64(3), last.Payload["metrics"].(map[string]interface{})["count"])
	assert.Equal(t, v1.KindAggregation, last.Kind)
	assert.Equal(t, text, last.Source)
	assert.NotEmpty(t, last.ID)
	assert.Equal(t, 1, w.ContextCount())

	_, err := w.Execute(ctx, "aggregate (count())", evt(4, map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, 2, w.ContextCount(), "distinct text gets its own context")
}

func TestWorld_CompiledQuerySharesState(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	const text = "aggregate count() by host"
	q, err := w.Compile(text)
	require.NoError(t, err)

	_, err = w.ExecuteCompiled(ctx, text, q, evt(1, map[string]interface{}{"host": "a"}))
	require.NoError(t, err)
	_, err = w.Execute(ctx, text, evt(2, map[string]interface{}{"host": "a"}))
	require.NoError(t, err)

	require.Len(t, rec.events, 2)
	assert.Equal(t, int64(2), rec.events[1].Payload["metrics"].(map[string]interface{})["count"])
	assert.Equal(t, 1, w.ContextCount())

	// A separately compiled copy resolves through its text.
	other := nql.MustCompile(text)
	_, err = w.ExecuteCompiled(ctx, text, other, evt(3, map[string]interface{}{"host": "a"}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.events[2].Payload["metrics"].(map[string]interface{})["count"])
	assert.Equal(t, 1, w.ContextCount())
}

func TestWorld_ExecuteThenSeparatelyCompiled(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	const text = "aggregate count() by host"
	_, err := w.Execute(ctx, text, evt(1, map[string]interface{}{"host": "a"}))
	require.NoError(t, err)
	_, err = w.ExecuteCompiled(ctx, text, nql.MustCompile(text), evt(2, map[string]interface{}{"host": "a"}))
	require.NoError(t, err)

	assert.Equal(t, 1, w.ContextCount())
	require.Len(t, rec.events, 2)
	assert.Equal(t, int64(2), rec.events[1].Payload["metrics"].(map[string]interface{})["count"])
}

func TestWorld_CanonicalEquivalentTextsKeepSeparateContexts(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	for _, text := range []string{"aggregate count()", "aggregate (count())"} {
		_, err := w.ExecuteCompiled(ctx, text, nql.MustCompile(text), evt(1, map[string]interface{}{}))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, w.ContextCount())
	require.Len(t, rec.events, 2)
	for _, e := range rec.events {
		assert.Equal(t, int64(1), e.Payload["metrics"].(map[string]interface{})["count"])
	}
}

func TestWorld_ExecuteCompiledWithoutText(t *testing.T) {
	ctx := context.Background()
	w := NewWorld(nil, Options{})

	q := nql.MustCompile("status >= 500")
	ok, err := w.ExecuteCompiled(ctx, "", q, evt(1, map[string]interface{}{"status": int64(503)}))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = w.Execute(ctx, q.String(), evt(2, map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, 1, w.ContextCount())
}

func TestWorld_FilterAndShow(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	tests := []struct {
		name    string
		query   string
		payload map[string]interface{}
		want    bool
	}{
		{"filter match", "status >= 400", map[string]interface{}{"status": int64(500)}, true},
		{"filter miss", "status >= 400", map[string]interface{}{"status": int64(200)}, false},
		{"missing field", "status >= 400", map[string]interface{}{}, false},
		{"show without where", "show host", map[string]interface{}{}, true},
		{"show where miss", "show host where level == ERROR", map[string]interface{}{"level": "INFO"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := w.Execute(ctx, tt.query, evt(1, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
	assert.Empty(t, rec.events)
}

func TestWorld_Pipeline(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	const text = "status >= 500 | aggregate count() by host | show host"

	ok, err := w.Execute(ctx, text, evt(1, map[string]interface{}{"status": int64(200), "host": "a"}))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rec.events, "later stages do not run once a stage fails")

	ok, err = w.Execute(ctx, text, evt(2, map[string]interface{}{"status": int64(503), "host": "a"}))
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, rec.events, 1)
	assert.Equal(t, int64(1), rec.events[0].Payload["metrics"].(map[string]interface{})["count"])
	assert.Equal(t, text, rec.events[0].Source)

	stats := w.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, "pipeline", stats[0].Kind)
	assert.Equal(t, int64(2), stats[0].Executions)
	assert.Equal(t, int64(1), stats[0].Matches)
	require.Len(t, stats[0].Stages, 3)
	assert.Equal(t, int64(2), stats[0].Stages[0].Executions)
	assert.Equal(t, int64(1), stats[0].Stages[1].Executions)
}

func TestWorld_PipelineSideEffectsSurviveLaterFailure(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	ok, err := w.Execute(ctx, "aggregate count() | status >= 500", evt(1, map[string]interface{}{"status": int64(200)}))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, rec.events, 1)
}

func TestWorld_Correlate(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	const text = "correlate type == log with type == network within 100ms"
	_, err := w.Execute(ctx, text, evt(0, map[string]interface{}{"type": "log"}))
	require.NoError(t, err)
	_, err = w.Execute(ctx, text, evt(50, map[string]interface{}{"type": "network"}))
	require.NoError(t, err)
	_, err = w.Execute(ctx, text, evt(200, map[string]interface{}{"type": "network"}))
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, v1.KindCorrelation, rec.events[0].Kind)
	assert.Equal(t, "correlation", rec.events[0].Payload["nql_result_type"])
}

func TestWorld_TickFlushesElapsedWindows(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	const text = "aggregate count() window tumbling(1s)"
	_, err := w.Execute(ctx, text, evt(100, map[string]interface{}{}))
	require.NoError(t, err)

	require.NoError(t, w.Tick(ctx, time.Unix(0, int64(500*time.Millisecond))))
	assert.Empty(t, rec.events, "window still open")

	_, err = w.Execute(ctx, text, evt(600, map[string]interface{}{}))
	require.NoError(t, err)

	// Not due yet: the next tick is one interval after the previous one.
	require.NoError(t, w.Tick(ctx, time.Unix(0, int64(1200*time.Millisecond))))
	assert.Empty(t, rec.events)

	require.NoError(t, w.Tick(ctx, time.Unix(0, int64(1500*time.Millisecond))))
	require.Len(t, rec.events, 1)
	assert.Equal(t, int64(2), rec.events[0].Payload["metrics"].(map[string]interface{})["count"])
}

func TestWorld_FlushForcesHousekeeping(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	const text = "aggregate count() window tumbling(1s)"
	_, err := w.Execute(ctx, text, evt(100, map[string]interface{}{}))
	require.NoError(t, err)
	require.NoError(t, w.Tick(ctx, time.Unix(0, int64(500*time.Millisecond))))

	require.NoError(t, w.Flush(ctx, time.Unix(0, int64(1100*time.Millisecond))))
	assert.Len(t, rec.events, 1)
}

func TestWorld_CompileError(t *testing.T) {
	w := NewWorld(nil, Options{})
	ok, err := w.Execute(context.Background(), "correlate a == 1", evt(1, map[string]interface{}{}))
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, nql.IsCompileError(err))
	assert.Equal(t, 0, w.ContextCount())
}

func TestWorld_SinkErrorIsNotFatal(t *testing.T) {
	failing := sink.Func(func(context.Context, *v1.Event) error { return errors.New("disk full") })
	w := NewWorld(failing, Options{})

	ok, err := w.Execute(context.Background(), "aggregate count()", evt(1, map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), w.Stats()[0].Emitted)
}

func TestWorld_Close(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{FlushOnClose: true})

	_, err := w.Execute(ctx, "aggregate count() by host window tumbling(1m)", evt(1, map[string]interface{}{"host": "a"}))
	require.NoError(t, err)
	assert.Empty(t, rec.events)

	require.NoError(t, w.Close(ctx))
	require.Len(t, rec.events, 1, "pending windows flushed on close")
	assert.Equal(t, 0, w.ContextCount())

	_, err = w.Execute(ctx, "status == 1", evt(2, map[string]interface{}{}))
	assert.ErrorIs(t, err, ErrWorldClosed)
	assert.ErrorIs(t, w.Tick(ctx, time.Now()), ErrWorldClosed)
	assert.ErrorIs(t, w.Flush(ctx, time.Now()), ErrWorldClosed)
	require.NoError(t, w.Close(ctx))
}

func TestWorld_CloseWithoutFlush(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewWorld(rec, Options{})

	_, err := w.Execute(ctx, "aggregate count() window tumbling(1m)", evt(1, map[string]interface{}{}))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))
	assert.Empty(t, rec.events)
}

package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
)

func newEngine(t *testing.T, text string, opts Options) *Engine {
	t.Helper()
	q, ok := nql.MustCompile(text).(*nql.Aggregate)
	require.True(t, ok, "%q is not an aggregate", text)
	e, err := New(q, opts)
	require.NoError(t, err)
	return e
}

// liveBuckets returns the engine's buckets in creation order.
func liveBuckets(e *Engine) []*Bucket {
	out := make([]*Bucket, len(e.order))
	copy(out, e.order)
	return out
}

func event(atMs int64, payload map[string]interface{}) *v1.Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &v1.Event{Kind: v1.KindLog, Timestamp: uint64(atMs * ms), Payload: payload}
}

func metrics(t *testing.T, evt *v1.Event) map[string]interface{} {
	t.Helper()
	m, ok := evt.Payload["metrics"].(map[string]interface{})
	require.True(t, ok)
	return m
}

func window(t *testing.T, evt *v1.Event) (int64, int64) {
	t.Helper()
	w, ok := evt.Payload["window"].(map[string]interface{})
	require.True(t, ok)
	return w["start_ns"].(int64), w["end_ns"].(int64)
}

func TestEngine_Tumbling(t *testing.T) {
	e := newEngine(t, "aggregate count() window tumbling(1s)", Options{})

	for _, at := range []int64{100, 900, 1500} {
		matched, results := e.Process(event(at, nil))
		assert.True(t, matched)
		assert.Empty(t, results)
	}

	buckets := liveBuckets(e)
	require.Len(t, buckets, 2)
	assert.Equal(t, int64(0), buckets[0].WindowStart)
	assert.Equal(t, int64(2), buckets[0].Count)
	assert.Equal(t, 1000*ms, buckets[1].WindowStart)
	assert.Equal(t, int64(1), buckets[1].Count)

	results := e.Flush(1000 * ms)
	require.Len(t, results, 1)
	assert.Equal(t, v1.KindAggregation, results[0].Kind)
	assert.Equal(t, uint64(1000*ms), results[0].Timestamp)
	assert.Equal(t, "aggregation", results[0].Payload["nql_result_type"])
	assert.Equal(t, int64(2), metrics(t, results[0])["count"])
	start, end := window(t, results[0])
	assert.Equal(t, int64(0), start)
	assert.Equal(t, 1000*ms, end)
	assert.NotContains(t, results[0].Payload, "group")

	// The elapsed bucket collided with the live [1000,2000) bucket and was dropped.
	require.Len(t, liveBuckets(e), 1)

	results = e.Flush(2500 * ms)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), metrics(t, results[0])["count"])

	// Reset in place: the bucket persists, advanced to the current window.
	buckets = liveBuckets(e)
	require.Len(t, buckets, 1)
	assert.Equal(t, 2000*ms, buckets[0].WindowStart)
	assert.Equal(t, int64(0), buckets[0].Count)
	assert.Empty(t, e.Flush(3500*ms), "empty windows emit nothing")
}

func TestEngine_TumblingZeroSize(t *testing.T) {
	e := newEngine(t, "aggregate count() window tumbling(0)", Options{})
	e.Process(event(5, nil))
	e.Process(event(7000, nil))

	buckets := liveBuckets(e)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(2), buckets[0].Count)

	results := e.Flush(10 * ms)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), metrics(t, results[0])["count"])
	assert.Empty(t, e.Flush(20*ms))
	assert.Len(t, liveBuckets(e), 1)
}

func TestEngine_Sliding(t *testing.T) {
	e := newEngine(t, "aggregate count() window sliding(1s, 500ms)", Options{})
	e.Process(event(1200, nil))

	buckets := liveBuckets(e)
	require.Len(t, buckets, 2)
	assert.Equal(t, 500*ms, buckets[0].WindowStart)
	assert.Equal(t, 1500*ms, buckets[0].WindowEnd)
	assert.Equal(t, 1000*ms, buckets[1].WindowStart)
	assert.Equal(t, 2000*ms, buckets[1].WindowEnd)

	results := e.Flush(1500 * ms)
	require.Len(t, results, 1)
	start, _ := window(t, results[0])
	assert.Equal(t, 500*ms, start)
	require.Len(t, liveBuckets(e), 1)

	results = e.Flush(2000 * ms)
	require.Len(t, results, 1)
	assert.Empty(t, liveBuckets(e))
}

func TestEngine_SlidingCap(t *testing.T) {
	e := newEngine(t, "aggregate count() window sliding(10s, 1s)", Options{MaxSlidingWindows: 3})
	matched, _ := e.Process(event(20000, nil))
	assert.True(t, matched)

	assert.Len(t, liveBuckets(e), 3)
	stats := e.Stats()
	assert.Equal(t, int64(7), stats.WindowsRefused)
	assert.Equal(t, 3, stats.Buckets)
}

func TestEngine_Session(t *testing.T) {
	e := newEngine(t, "aggregate count() by user window session(30s)", Options{})
	alice := map[string]interface{}{"user": "alice"}

	e.Process(event(0, alice))
	e.Process(event(5000, alice))
	require.Len(t, liveBuckets(e), 1)
	assert.Equal(t, int64(2), liveBuckets(e)[0].Count)

	e.Process(event(40000, alice))
	buckets := liveBuckets(e)
	require.Len(t, buckets, 2)
	assert.Equal(t, 40000*ms, buckets[1].WindowStart)

	results := e.Flush(40000 * ms)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), metrics(t, results[0])["count"])
	assert.Equal(t, map[string]interface{}{"user": "alice"}, results[0].Payload["group"])
	start, end := window(t, results[0])
	assert.Equal(t, int64(0), start)
	assert.Equal(t, 35000*ms, end)

	assert.Len(t, liveBuckets(e), 1)
	assert.Empty(t, e.Flush(60000*ms))
	require.Len(t, e.Flush(70000*ms), 1)
	assert.Empty(t, liveBuckets(e))
}

func TestEngine_FunctionsWithoutWindow(t *testing.T) {
	e := newEngine(t, "aggregate (count(), avg(latency), min(latency), max(latency), sum(latency), percentile(latency, 50))", Options{})

	var last *v1.Event
	for i, latency := range []int64{10, 20, 30} {
		matched, results := e.Process(event(int64(i), map[string]interface{}{"latency": latency}))
		require.True(t, matched)
		require.Len(t, results, 1, "None windows emit on every update")
		last = results[0]
	}

	assert.Equal(t, uint64(2*ms), last.Timestamp)
	assert.NotContains(t, last.Payload, "window")
	assert.Equal(t, map[string]interface{}{
		"count":       int64(3),
		"avg_latency": 20.0,
		"min_latency": 10.0,
		"max_latency": 30.0,
		"sum_latency": 60.0,
		"p50_latency": 20.0,
	}, metrics(t, last))

	assert.Empty(t, e.Flush(time.Hour.Nanoseconds()))
	assert.Empty(t, e.Drain())
}

func TestEngine_GroupKeys(t *testing.T) {
	e := newEngine(t, "aggregate count() by host, ratio", Options{})

	_, results := e.Process(event(1, map[string]interface{}{"host": "web-01", "ratio": 1.5}))
	require.Len(t, results, 1)
	assert.Equal(t, map[string]interface{}{"host": "web-01", "ratio": "1.500000"}, results[0].Payload["group"])

	_, results = e.Process(event(2, map[string]interface{}{"ratio": int64(2)}))
	require.Len(t, results, 1)
	assert.Equal(t, map[string]interface{}{"host": "null", "ratio": "2"}, results[0].Payload["group"])

	assert.Len(t, liveBuckets(e), 2)
}

func TestEngine_Where(t *testing.T) {
	e := newEngine(t, "aggregate count() where status >= 500 window tumbling(1m)", Options{})

	matched, _ := e.Process(event(1, map[string]interface{}{"status": int64(200)}))
	assert.False(t, matched)
	matched, _ = e.Process(event(2, map[string]interface{}{"status": int64(503)}))
	assert.True(t, matched)

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.EventsFiltered)
	assert.Equal(t, int64(1), stats.Updates)
}

func TestEngine_Drain(t *testing.T) {
	e := newEngine(t, "aggregate count() by host window tumbling(1s)", Options{})
	e.Process(event(100, map[string]interface{}{"host": "a"}))
	e.Process(event(200, map[string]interface{}{"host": "b"}))

	results := e.Drain()
	require.Len(t, results, 2)
	assert.Equal(t, map[string]interface{}{"host": "a"}, results[0].Payload["group"])
	assert.Equal(t, map[string]interface{}{"host": "b"}, results[1].Payload["group"])
	assert.Empty(t, liveBuckets(e))
	assert.Equal(t, int64(2), e.Stats().Emitted)
}

func TestNew_RejectsUnknownFunction(t *testing.T) {
	_, err := New(&nql.Aggregate{Funcs: []nql.AggFunc{{Name: "median", Field: "x"}}}, Options{})
	require.Error(t, err)

	_, err = New(nil, Options{})
	require.Error(t, err)
}

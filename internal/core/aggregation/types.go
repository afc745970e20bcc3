package aggregation

import (
	"math"
	"time"
)

// Default limits.
const (
	DefaultMaxSlidingWindows = 1000
	DefaultFlushFloor        = 100 * time.Millisecond
)

// openEnd is the end bound of buckets that never close.
const openEnd = math.MaxInt64

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	// MaxSlidingWindows caps how many sliding windows one event may join.
	MaxSlidingWindows int
	// FlushFloor is the shortest housekeeping interval.
	FlushFloor time.Duration
}

func (o Options) normalized() Options {
	if o.MaxSlidingWindows <= 0 {
		o.MaxSlidingWindows = DefaultMaxSlidingWindows
	}
	if o.FlushFloor <= 0 {
		o.FlushFloor = DefaultFlushFloor
	}
	return o
}

// bucketKey identifies a bucket. Session buckets use the session start.
type bucketKey struct {
	group string
	start int64
}

// Bucket accumulates statistics for one group within one window. Times are
// Unix nanoseconds; WindowEnd is exclusive.
type Bucket struct {
	GroupValues   []string
	WindowStart   int64
	WindowEnd     int64
	LastEventTime int64
	Count         int64

	key  bucketKey
	accs []Accumulator
}

func (b *Bucket) reset() {
	b.Count = 0
	for i := range b.accs {
		b.accs[i].reset()
	}
}

// Stats reports the engine's counters.
type Stats struct {
	Buckets        int
	Updates        int64
	Emitted        int64
	WindowsRefused int64
	EventsFiltered int64
}

package aggregation

import (
	"time"

	"github.com/aevon-lab/nqlflow/internal/core/nql"
)

// BucketFor truncates t to a size boundary. A non-positive size maps every
// time to the single window at epoch 0.
// Example: BucketFor(1500ms, 1s) → 1000ms
func BucketFor(t int64, size time.Duration) int64 {
	if size <= 0 {
		return 0
	}
	return t - t%int64(size)
}

// SlidingStarts returns, in ascending order, the start of every
// slide-aligned window w >= 0 with w <= t < w+size. At most max starts are
// returned; refused counts the windows left out. A zero slide means
// slide = size and a non-positive size behaves like tumbling size 0.
func SlidingStarts(t int64, size, slide time.Duration, max int) (starts []int64, refused int) {
	if size <= 0 {
		return []int64{0}, 0
	}
	if slide <= 0 {
		slide = size
	}
	step := int64(slide)
	last := t - t%step

	var first int64
	if lower := t - int64(size); lower >= 0 {
		first = (lower/step + 1) * step
	}
	for w := first; w <= last; w += step {
		if len(starts) == max {
			refused = int((last-w)/step) + 1
			break
		}
		starts = append(starts, w)
	}
	return starts, refused
}

// FlushInterval is the housekeeping period for a window: the size for
// tumbling, min(size, slide) for sliding and half the timeout for session,
// never below floor. Windows of kind None need no housekeeping and report 0.
func FlushInterval(w nql.WindowSpec, floor time.Duration) time.Duration {
	var d time.Duration
	switch w.Kind {
	case nql.WindowTumbling:
		d = w.Size
	case nql.WindowSliding:
		d = w.Size
		if w.Slide > 0 && w.Slide < d {
			d = w.Slide
		}
	case nql.WindowSession:
		d = w.Timeout / 2
	default:
		return 0
	}
	if d < floor {
		d = floor
	}
	return d
}

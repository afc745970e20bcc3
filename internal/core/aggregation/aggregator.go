package aggregation

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/aevon-lab/nqlflow/internal/core/document"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
)

// Aggregator defines the fold semantics of an aggregate function.
// To add a function: implement this interface, register it in Operators and
// teach the nQL compiler its call syntax.
type Aggregator interface {
	// Observe folds the field value of one event into acc. present is false
	// when the event has no such field.
	Observe(acc *Accumulator, value interface{}, present bool)

	// Result reports the accumulated value.
	Result(acc *Accumulator, fn nql.AggFunc) interface{}
}

// Operators is the registry of aggregate functions keyed by nQL name.
var Operators = map[string]Aggregator{
	nql.FuncCount:      countAgg{},
	nql.FuncSum:        sumAgg{},
	nql.FuncAvg:        sumAgg{avg: true},
	nql.FuncMin:        extremumAgg{},
	nql.FuncMax:        extremumAgg{max: true},
	nql.FuncPercentile: percentileAgg{},
	nql.FuncDistinct:   distinctAgg{},
}

// Accumulator is the running state of one function within one bucket.
// Fields unused by a function stay zero.
type Accumulator struct {
	Count    int64
	Numeric  int64
	Sum      decimal.Decimal
	SumSq    decimal.Decimal
	Min      float64
	Max      float64
	Samples  []float64
	Distinct map[string]struct{}
}

func (a *Accumulator) reset() {
	*a = Accumulator{}
}

func (a *Accumulator) observeNumber(v interface{}) (float64, bool) {
	f, ok := document.Float(v)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	if a.Numeric == 0 || f < a.Min {
		a.Min = f
	}
	if a.Numeric == 0 || f > a.Max {
		a.Max = f
	}
	a.Numeric++
	return f, true
}

// countAgg counts events. The field value is ignored.
type countAgg struct{}

func (countAgg) Observe(acc *Accumulator, _ interface{}, _ bool) { acc.Count++ }
func (countAgg) Result(acc *Accumulator, _ nql.AggFunc) interface{} {
	return acc.Count
}

// sumAgg keeps an exact sum and sum of squares plus extrema. With avg set it
// reports the mean instead of the sum.
type sumAgg struct {
	avg bool
}

func (sumAgg) Observe(acc *Accumulator, v interface{}, present bool) {
	acc.Count++
	if !present {
		return
	}
	d, ok := document.Decimal(v)
	if !ok {
		return
	}
	if _, ok := acc.observeNumber(v); !ok {
		return
	}
	acc.Sum = acc.Sum.Add(d)
	acc.SumSq = acc.SumSq.Add(d.Mul(d))
}

func (s sumAgg) Result(acc *Accumulator, _ nql.AggFunc) interface{} {
	if acc.Numeric == 0 {
		return nil
	}
	total := acc.Sum
	if s.avg {
		total = total.Div(decimal.NewFromInt(acc.Numeric))
	}
	f, _ := total.Float64()
	return f
}

// extremumAgg tracks the minimum, or the maximum when max is set.
type extremumAgg struct {
	max bool
}

func (extremumAgg) Observe(acc *Accumulator, v interface{}, present bool) {
	acc.Count++
	if present {
		acc.observeNumber(v)
	}
}

func (e extremumAgg) Result(acc *Accumulator, _ nql.AggFunc) interface{} {
	if acc.Numeric == 0 {
		return nil
	}
	if e.max {
		return acc.Max
	}
	return acc.Min
}

// percentileAgg keeps raw samples and selects by rank at flush time.
type percentileAgg struct{}

func (percentileAgg) Observe(acc *Accumulator, v interface{}, present bool) {
	acc.Count++
	if !present {
		return
	}
	if f, ok := acc.observeNumber(v); ok {
		acc.Samples = append(acc.Samples, f)
	}
}

func (percentileAgg) Result(acc *Accumulator, fn nql.AggFunc) interface{} {
	n := len(acc.Samples)
	if n == 0 {
		return nil
	}
	sorted := make([]float64, n)
	copy(sorted, acc.Samples)
	sort.Float64s(sorted)
	return sorted[percentileIndex(fn.Percentile, n)]
}

// percentileIndex is clamp(floor(p/100*n), 0, n-1).
func percentileIndex(p float64, n int) int {
	idx := int(math.Floor(p / 100 * float64(n)))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// distinctAgg reports the number of distinct field values. Missing fields
// are not values.
type distinctAgg struct{}

func (distinctAgg) Observe(acc *Accumulator, v interface{}, present bool) {
	acc.Count++
	if !present {
		return
	}
	if acc.Distinct == nil {
		acc.Distinct = make(map[string]struct{})
	}
	acc.Distinct[distinctKey(v)] = struct{}{}
}

func (distinctAgg) Result(acc *Accumulator, _ nql.AggFunc) interface{} {
	return int64(len(acc.Distinct))
}

// distinctKey tags values by type so the string "1" and the number 1 stay
// distinct while 1 and 1.0 do not. Objects and arrays are keyed by their JSON
// encoding, which orders object keys.
func distinctKey(v interface{}) string {
	switch val := v.(type) {
	case string:
		return "s:" + val
	case bool:
		return "b:" + strconv.FormatBool(val)
	case map[string]interface{}, []interface{}:
		if b, err := json.Marshal(val); err == nil {
			return "j:" + string(b)
		}
	}
	if i, ok := document.Int(v); ok {
		return "n:" + strconv.FormatInt(i, 10)
	}
	if f, ok := document.Float(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "null"
}

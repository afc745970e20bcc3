package nql

import (
	"fmt"
	"strings"
	"time"

	"github.com/aevon-lab/nqlflow/internal/core/filter"
)

// Query is a compiled nQL statement. Implementations are immutable once
// compiled and may be shared.
type Query interface {
	queryNode()
	String() string
}

// KindOf names the form of q: filter, correlate, aggregate, show or
// pipeline.
func KindOf(q Query) string {
	switch q.(type) {
	case *FilterQuery:
		return "filter"
	case *Correlate:
		return "correlate"
	case *Aggregate:
		return "aggregate"
	case *Show:
		return "show"
	case *Pipeline:
		return "pipeline"
	}
	return "unknown"
}

// FilterQuery is a bare filter expression.
type FilterQuery struct {
	Filter *filter.Filter
}

// Correlate joins events matching Left with events matching Right whose
// timestamps differ by at most Window.
type Correlate struct {
	Left   *filter.Filter
	Right  *filter.Filter
	Window time.Duration
}

// Aggregate computes Funcs per GroupBy tuple per window. Where is nil when
// no where clause was given.
type Aggregate struct {
	Funcs   []AggFunc
	GroupBy []string
	Where   *filter.Filter
	Window  WindowSpec
}

// Show selects payload fields. All is set for "show *".
type Show struct {
	Fields []string
	All    bool
	Where  *filter.Filter
}

// Pipeline runs its stages left to right.
type Pipeline struct {
	Stages []Query
}

func (*FilterQuery) queryNode() {}
func (*Correlate) queryNode()   {}
func (*Aggregate) queryNode()   {}
func (*Show) queryNode()        {}
func (*Pipeline) queryNode()    {}

func (q *FilterQuery) String() string { return q.Filter.String() }

func (q *Correlate) String() string {
	return fmt.Sprintf("correlate %s with %s within %s", q.Left, q.Right, FormatDuration(q.Window))
}

func (q *Aggregate) String() string {
	funcs := make([]string, len(q.Funcs))
	for i, fn := range q.Funcs {
		funcs[i] = fn.String()
	}
	var sb strings.Builder
	sb.WriteString("aggregate (" + strings.Join(funcs, ", ") + ")")
	if len(q.GroupBy) > 0 {
		sb.WriteString(" by " + strings.Join(q.GroupBy, ", "))
	}
	if q.Where != nil && q.Where.Root != nil {
		sb.WriteString(" where " + q.Where.String())
	}
	if q.Window.Kind != WindowNone {
		sb.WriteString(" window " + q.Window.String())
	}
	return sb.String()
}

func (q *Show) String() string {
	s := "show *"
	if !q.All {
		s = "show " + strings.Join(q.Fields, ", ")
	}
	if q.Where != nil && q.Where.Root != nil {
		s += " where " + q.Where.String()
	}
	return s
}

func (q *Pipeline) String() string {
	stages := make([]string, len(q.Stages))
	for i, st := range q.Stages {
		stages[i] = st.String()
	}
	return strings.Join(stages, " | ")
}

// Aggregate function names.
const (
	FuncCount      = "count"
	FuncSum        = "sum"
	FuncAvg        = "avg"
	FuncMin        = "min"
	FuncMax        = "max"
	FuncPercentile = "percentile"
	FuncDistinct   = "distinct"
)

// AggFunc is one aggregate function call. Field is empty for count.
type AggFunc struct {
	Name       string
	Field      string
	Percentile float64
}

// MetricName is the key the function's value is reported under.
func (f AggFunc) MetricName() string {
	switch f.Name {
	case FuncCount:
		return FuncCount
	case FuncPercentile:
		return fmt.Sprintf("p%g_%s", f.Percentile, f.Field)
	}
	return f.Name + "_" + f.Field
}

func (f AggFunc) String() string {
	switch f.Name {
	case FuncCount:
		return "count()"
	case FuncPercentile:
		return fmt.Sprintf("percentile(%s, %g)", f.Field, f.Percentile)
	}
	return f.Name + "(" + f.Field + ")"
}

// WindowKind selects the bucketing strategy of an aggregate.
type WindowKind int

const (
	WindowNone WindowKind = iota
	WindowTumbling
	WindowSliding
	WindowSession
)

func (k WindowKind) String() string {
	switch k {
	case WindowTumbling:
		return "tumbling"
	case WindowSliding:
		return "sliding"
	case WindowSession:
		return "session"
	}
	return "none"
}

// WindowSpec describes an aggregate's window. Slide applies to sliding
// windows only, Timeout to session windows only.
type WindowSpec struct {
	Kind    WindowKind
	Size    time.Duration
	Slide   time.Duration
	Timeout time.Duration
}

func (w WindowSpec) String() string {
	switch w.Kind {
	case WindowTumbling:
		return "tumbling(" + FormatDuration(w.Size) + ")"
	case WindowSliding:
		return "sliding(" + FormatDuration(w.Size) + ", " + FormatDuration(w.Slide) + ")"
	case WindowSession:
		return "session(" + FormatDuration(w.Timeout) + ")"
	}
	return ""
}

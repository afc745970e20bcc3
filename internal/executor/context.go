package executor

import (
	"time"

	"github.com/aevon-lab/nqlflow/internal/core/aggregation"
	"github.com/aevon-lab/nqlflow/internal/core/correlation"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
)

// execContext is the persistent state of one query, or of one stage of a
// pipeline. Housekeeping lives here, so it is released with the context.
type execContext struct {
	key    string
	source string
	query  nql.Query

	agg    *aggregation.Engine
	corr   *correlation.Engine
	stages []*execContext

	interval time.Duration
	nextDue  int64

	executions int64
	matches    int64
	emitted    int64
}

// appendTree appends c and, depth first, its pipeline stages.
func (c *execContext) appendTree(out []*execContext) []*execContext {
	out = append(out, c)
	for _, st := range c.stages {
		out = st.appendTree(out)
	}
	return out
}

// ContextStats describes one execution context.
type ContextStats struct {
	Query       string             `json:"query"`
	Kind        string             `json:"kind"`
	Executions  int64              `json:"executions"`
	Matches     int64              `json:"matches"`
	Emitted     int64              `json:"emitted"`
	Aggregation *aggregation.Stats `json:"aggregation,omitempty"`
	Correlation *correlation.Stats `json:"correlation,omitempty"`
	Stages      []ContextStats     `json:"stages,omitempty"`
}

func (c *execContext) stats() ContextStats {
	s := ContextStats{
		Query:      c.query.String(),
		Kind:       nql.KindOf(c.query),
		Executions: c.executions,
		Matches:    c.matches,
		Emitted:    c.emitted,
	}
	if c.agg != nil {
		as := c.agg.Stats()
		s.Aggregation = &as
	}
	if c.corr != nil {
		cs := c.corr.Stats()
		s.Correlation = &cs
	}
	for _, st := range c.stages {
		s.Stages = append(s.Stages, st.stats())
	}
	return s
}

// Stats returns per-query counters in creation order.
func (w *World) Stats() []ContextStats {
	out := make([]ContextStats, 0, len(w.roots))
	for _, c := range w.roots {
		s := c.stats()
		s.Query = c.source
		out = append(out, s)
	}
	return out
}

package nql

import "github.com/aevon-lab/nqlflow/internal/core/document"

// Project applies the field selection of q to payload. Only a show query, or
// the last show stage of a pipeline, selects fields; any other query returns
// payload unchanged. Selected fields are keyed by their path and missing
// fields are omitted.
func Project(q Query, payload map[string]interface{}) map[string]interface{} {
	show := selection(q)
	if show == nil || show.All {
		return payload
	}
	out := make(map[string]interface{}, len(show.Fields))
	for _, field := range show.Fields {
		if v, ok := document.Lookup(payload, field); ok {
			out[field] = document.Clone(v)
		}
	}
	return out
}

func selection(q Query) *Show {
	switch q := q.(type) {
	case *Show:
		return q
	case *Pipeline:
		for i := len(q.Stages) - 1; i >= 0; i-- {
			if show, ok := q.Stages[i].(*Show); ok {
				return show
			}
		}
	}
	return nil
}

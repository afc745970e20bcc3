package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
)

// ErrDuplicate is returned when a result with the same id already exists.
var ErrDuplicate = errors.New("result already exists")

// ErrNotFound is returned when a lookup matches no stored result.
var ErrNotFound = errors.New("result not found")

// Result is a persisted derived event.
type Result struct {
	ID          string                 `json:"id"`
	PartitionID int                    `json:"partition_id"`
	Kind        v1.Kind                `json:"kind"`
	ResultType  string                 `json:"result_type"`
	Source      string                 `json:"source"`
	Timestamp   uint64                 `json:"timestamp"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ResultStore persists aggregation and correlation results.
type ResultStore interface {
	// SaveResult stores a derived event. The event must carry an ID.
	SaveResult(ctx context.Context, evt *v1.Event) error

	// ListResults returns the newest results first. An empty resultType
	// matches every type.
	ListResults(ctx context.Context, resultType string, limit int) ([]Result, error)

	// GetResult returns one result by id, or ErrNotFound.
	GetResult(ctx context.Context, id string) (*Result, error)
}

// ResultTypeOf reads the nql_result_type discriminator of a derived event.
func ResultTypeOf(evt *v1.Event) string {
	if evt == nil {
		return ""
	}
	s, _ := evt.Payload["nql_result_type"].(string)
	return s
}

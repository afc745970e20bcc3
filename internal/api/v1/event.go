package v1

import (
	"fmt"
	"math"

	"github.com/aevon-lab/nqlflow/internal/core/document"
)

// Kind classifies where an event came from.
type Kind string

const (
	// KindLog is a structured log record.
	KindLog Kind = "log"
	// KindNetwork is a captured network event.
	KindNetwork Kind = "network"
	// KindCorrelation is a derived event produced by a correlate query.
	KindCorrelation Kind = "correlation"
	// KindAggregation is a derived event produced by an aggregate query.
	KindAggregation Kind = "aggregation"
	// KindError reports a failure inside an input or the engine.
	KindError Kind = "error"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLog, KindNetwork, KindCorrelation, KindAggregation, KindError:
		return true
	}
	return false
}

// Event is the unit handed to the query engine.
// The envelope (ID, Kind, Timestamp, Source) is separate from the payload.
type Event struct {
	// ID identifies the event. Derived events always carry one; ingested
	// events get one assigned when the producer left it empty.
	ID string `json:"id,omitempty"`

	Kind Kind `json:"kind"`

	// Timestamp is nanoseconds; only differences and ordering matter.
	Timestamp uint64 `json:"timestamp"`

	// Source names the producing input. For derived events it is the text
	// of the query that produced them. Empty means unknown.
	Source string `json:"source,omitempty"`

	// Payload is the structured document filters and queries run against.
	Payload map[string]interface{} `json:"payload"`
}

// Validate ensures the envelope is usable by the engine.
func (e *Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("kind %q is not one of log, network, correlation, aggregation, error", e.Kind)
	}
	if e.Payload == nil {
		return fmt.Errorf("payload is required")
	}
	return nil
}

// Clone returns a deep copy, so buffered events never share payload
// state with the caller.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Payload = document.CloneMap(e.Payload)
	return &cp
}

// UnixNano returns the timestamp as signed nanoseconds, saturating at the
// int64 maximum.
func (e *Event) UnixNano() int64 {
	if e.Timestamp > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(e.Timestamp)
}

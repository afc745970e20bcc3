// Package sink delivers derived and pass-through events to their consumers.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/storage"
)

// Sink receives events. The engine never calls a sink concurrently, but
// sinks shared with other goroutines must synchronize themselves.
type Sink interface {
	Emit(ctx context.Context, evt *v1.Event) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, evt *v1.Event) error

func (f Func) Emit(ctx context.Context, evt *v1.Event) error { return f(ctx, evt) }

// Discard drops every event.
var Discard Sink = Func(func(context.Context, *v1.Event) error { return nil })

// Multi fans an event out to every sink. All sinks are attempted; their
// errors are joined.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, evt *v1.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Writer encodes each event as one line of JSON.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) Emit(_ context.Context, evt *v1.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(evt); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Store persists derived results. Events without a nql_result_type are
// ignored, so pass-through traffic never reaches the results table.
type Store struct {
	store storage.ResultStore
}

func NewStore(store storage.ResultStore) *Store {
	return &Store{store: store}
}

func (s *Store) Emit(ctx context.Context, evt *v1.Event) error {
	if storage.ResultTypeOf(evt) == "" {
		return nil
	}
	if err := s.store.SaveResult(ctx, evt); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// Package source reads events from JSON lines streams.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
)

// DefaultMaxLineBytes bounds a single encoded event.
const DefaultMaxLineBytes = 1 << 20

// LineError reports an event that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Reader decodes one event per line. Blank lines are skipped.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader reads from r. maxLineBytes <= 0 selects DefaultMaxLineBytes.
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next event, io.EOF at the end of input, or a *LineError
// for a malformed or invalid line. Reading may continue after a LineError.
func (r *Reader) Next() (*v1.Event, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		evt, err := v1.DecodeEvent(line)
		if err != nil {
			return nil, &LineError{Line: r.line, Err: err}
		}
		if err := evt.Validate(); err != nil {
			return nil, &LineError{Line: r.line, Err: err}
		}
		return evt, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

// Line is the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// Stats counts what Feed did.
type Stats struct {
	Events  int
	Skipped int
}

// Feed passes every event from r to submit until the input ends, ctx is
// done or submit fails. Malformed lines are logged and skipped.
func Feed(ctx context.Context, r *Reader, submit func(context.Context, *v1.Event) error) (Stats, error) {
	var st Stats
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		evt, err := r.Next()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		var lineErr *LineError
		if errors.As(err, &lineErr) {
			st.Skipped++
			slog.Warn("[Source] Skipping malformed event", "line", lineErr.Line, "error", lineErr.Err)
			continue
		}
		if err != nil {
			return st, err
		}
		if err := submit(ctx, evt); err != nil {
			return st, fmt.Errorf("submit event at line %d: %w", r.Line(), err)
		}
		st.Events++
	}
}

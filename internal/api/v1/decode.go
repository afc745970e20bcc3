package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeEvent parses one JSON event. Payload numbers are kept as
// json.Number so integers survive without float rounding.
func DecodeEvent(data []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var evt Event
	if err := dec.Decode(&evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode event: unexpected data after event")
	}
	return &evt, nil
}

package postgres

import (
	"bytes"
	"encoding/json"
	"fmt"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/storage"
)

// marshalPayload encodes a result payload for the jsonb column. A nil
// payload is stored as an empty object.
func marshalPayload(payload map[string]interface{}) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanResultRow reads one nql_results row. Payload numbers are decoded as
// json.Number so integer metrics keep their precision.
func scanResultRow(row scanner) (*storage.Result, error) {
	var (
		res         storage.Result
		kind        string
		ts          int64
		payloadJSON []byte
	)
	err := row.Scan(
		&res.ID,
		&res.PartitionID,
		&kind,
		&res.ResultType,
		&res.Source,
		&ts,
		&payloadJSON,
		&res.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan result row: %w", err)
	}
	res.Kind = v1.Kind(kind)
	if ts > 0 {
		res.Timestamp = uint64(ts)
	}

	dec := json.NewDecoder(bytes.NewReader(payloadJSON))
	dec.UseNumber()
	if err := dec.Decode(&res.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &res, nil
}

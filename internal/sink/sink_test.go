package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/storage"
	storagemocks "github.com/aevon-lab/nqlflow/internal/mocks/storage"
)

func result(id string) *v1.Event {
	return &v1.Event{
		ID:        id,
		Kind:      v1.KindAggregation,
		Timestamp: 1000,
		Source:    "aggregate count()",
		Payload:   map[string]interface{}{"nql_result_type": "aggregation"},
	}
}

func TestWriter_OneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Emit(context.Background(), result("r-1")))
	require.NoError(t, w.Emit(context.Background(), result("r-2")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var got v1.Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "r-2", got.ID)
	assert.Equal(t, v1.KindAggregation, got.Kind)
}

func TestMulti_AttemptsEverySink(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	var calls []string
	record := func(name string, err error) Sink {
		return Func(func(context.Context, *v1.Event) error {
			calls = append(calls, name)
			return err
		})
	}

	m := Multi{record("a", errA), record("b", nil), record("c", errC)}
	err := m.Emit(context.Background(), result("r-1"))

	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	assert.NoError(t, Multi{record("d", nil)}.Emit(context.Background(), result("r-2")))
}

func TestStore_Emit(t *testing.T) {
	tests := []struct {
		name    string
		evt     *v1.Event
		saveErr error
		saves   bool
		wantErr bool
	}{
		{name: "derived result saved", evt: result("r-1"), saves: true},
		{name: "duplicate ignored", evt: result("r-2"), saveErr: storage.ErrDuplicate, saves: true},
		{name: "store failure surfaced", evt: result("r-3"), saveErr: errors.New("connection refused"), saves: true, wantErr: true},
		{
			name: "pass-through event skipped",
			evt:  &v1.Event{ID: "e-1", Kind: v1.KindLog, Payload: map[string]interface{}{"status": 500}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storagemocks.NewResultStore(t)
			if tt.saves {
				store.EXPECT().
					SaveResult(mock.Anything, mock.MatchedBy(func(e *v1.Event) bool { return e.ID == tt.evt.ID })).
					Return(tt.saveErr).
					Once()
			}

			err := NewStore(store).Emit(context.Background(), tt.evt)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "save result")
				return
			}
			require.NoError(t, err)
		})
	}
}

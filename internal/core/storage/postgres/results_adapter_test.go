package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	"github.com/aevon-lab/nqlflow/internal/core/partition"
	"github.com/aevon-lab/nqlflow/internal/core/storage"
)

func TestAdapter_SaveResult(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	derived := func(id string) *v1.Event {
		return &v1.Event{
			ID:        id,
			Kind:      v1.KindAggregation,
			Timestamp: 60_000_000_000,
			Source:    "aggregate count() by host window 1m",
			Payload: map[string]interface{}{
				"nql_result_type": "aggregation",
				"metrics":         map[string]interface{}{"count": int64(3)},
			},
		}
	}

	tests := []struct {
		name       string
		event      *v1.Event
		mockResult func(mock sqlmock.Sqlmock, evt *v1.Event)
		assertion  func(t *testing.T, err error)
	}{
		{
			name:  "success",
			event: derived("res-1"),
			mockResult: func(mock sqlmock.Sqlmock, evt *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(querySaveResult)).
					WithArgs(
						evt.ID,
						partition.For(evt.Source),
						"aggregation",
						"aggregation",
						evt.Source,
						int64(60_000_000_000),
						sqlmock.AnyArg(),
					).
					WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
			},
			assertion: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name:  "duplicate maps to ErrDuplicate",
			event: derived("res-dup"),
			mockResult: func(mock sqlmock.Sqlmock, evt *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(querySaveResult)).
					WillReturnRows(sqlmock.NewRows([]string{"created_at"}))
			},
			assertion: func(t *testing.T, err error) {
				require.ErrorIs(t, err, storage.ErrDuplicate)
			},
		},
		{
			name:  "database error is wrapped",
			event: derived("res-err"),
			mockResult: func(mock sqlmock.Sqlmock, evt *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(querySaveResult)).
					WillReturnError(errors.New("connection reset"))
			},
			assertion: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "failed to save result")
			},
		},
		{
			name: "marshal error short-circuits",
			event: &v1.Event{
				ID:      "res-bad",
				Kind:    v1.KindAggregation,
				Payload: map[string]interface{}{"value": math.NaN()},
			},
			assertion: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "failed to marshal payload")
			},
		},
		{
			name:  "missing id rejected",
			event: derived(""),
			assertion: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "no id")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			if tc.mockResult != nil {
				tc.mockResult(mock, tc.event)
			}
			err := adapter.SaveResult(context.Background(), tc.event)
			tc.assertion(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_ListResults(t *testing.T) {
	created := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	t.Run("all types", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		rows := sqlmock.NewRows(resultRowColumns()).
			AddRow("res-2", 7, "correlation", "correlation", "correlate a == 1 with b == 1", int64(2000), []byte(`{"nql_result_type":"correlation","window_ms":100}`), created).
			AddRow("res-1", 3, "aggregation", "aggregation", "aggregate count()", int64(1000), []byte(`{"nql_result_type":"aggregation","metrics":{"count":2}}`), created)
		mock.ExpectQuery(regexp.QuoteMeta(queryListResults)).WithArgs(10).WillReturnRows(rows)

		results, err := adapter.ListResults(context.Background(), "", 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, "res-2", results[0].ID)
		require.Equal(t, v1.KindCorrelation, results[0].Kind)
		require.Equal(t, uint64(2000), results[0].Timestamp)
		require.Equal(t, json.Number("100"), results[0].Payload["window_ms"])
		require.Equal(t, 3, results[1].PartitionID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("by type", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryListResultsByType)).
			WithArgs("aggregation", 5).
			WillReturnRows(sqlmock.NewRows(resultRowColumns()))

		results, err := adapter.ListResults(context.Background(), "aggregation", 5)
		require.NoError(t, err)
		require.Empty(t, results)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bad payload", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		rows := sqlmock.NewRows(resultRowColumns()).
			AddRow("res-1", 0, "aggregation", "aggregation", "q", int64(0), []byte(`not json`), created)
		mock.ExpectQuery(regexp.QuoteMeta(queryListResults)).WithArgs(1).WillReturnRows(rows)

		_, err := adapter.ListResults(context.Background(), "", 1)
		require.ErrorContains(t, err, "failed to unmarshal payload")
	})

	t.Run("non-positive limit", func(t *testing.T) {
		adapter, _, db := newMockAdapter(t)
		defer db.Close()

		_, err := adapter.ListResults(context.Background(), "", 0)
		require.Error(t, err)
	})
}

func TestAdapter_GetResult(t *testing.T) {
	created := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryGetResult)).
			WithArgs("res-1").
			WillReturnRows(sqlmock.NewRows(resultRowColumns()).
				AddRow("res-1", 3, "aggregation", "aggregation", "aggregate count()", int64(1000), []byte(`{"nql_result_type":"aggregation"}`), created))

		res, err := adapter.GetResult(context.Background(), "res-1")
		require.NoError(t, err)
		require.Equal(t, "aggregate count()", res.Source)
		require.Equal(t, created, res.CreatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryGetResult)).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(resultRowColumns()))

		_, err := adapter.GetResult(context.Background(), "nope")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		exists  bool
		wantErr string
	}{
		{name: "table present", exists: true},
		{name: "table missing", exists: false, wantErr: "does not exist"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta(queryResultsTableExists)).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tc.exists))

			err = validateSchema(db)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPrepare_Failure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare(regexp.QuoteMeta(querySaveResult))
	mock.ExpectPrepare(regexp.QuoteMeta(queryListResults)).WillReturnError(errors.New("syntax error"))

	_, err = prepare(db)
	require.ErrorContains(t, err, "listResults")
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	for _, q := range []string{querySaveResult, queryListResults, queryListResultsByType, queryGetResult} {
		mock.ExpectPrepare(regexp.QuoteMeta(q))
	}
	adapter, err := prepare(db)
	require.NoError(t, err)

	return adapter, mock, db
}

func resultRowColumns() []string {
	return []string{"id", "partition_id", "kind", "result_type", "source", "event_ts", "payload", "created_at"}
}

package postgres

// SQL for the nql_results table.

const (
	// querySaveResult inserts a derived event. A conflicting id returns no
	// rows, which the adapter maps to storage.ErrDuplicate.
	querySaveResult = `
		INSERT INTO nql_results (
			id, partition_id, kind, result_type, source, event_ts, payload
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`

	queryListResults = `
		SELECT id, partition_id, kind, result_type, source, event_ts, payload, created_at
		FROM nql_results
		ORDER BY created_at DESC, event_ts DESC
		LIMIT $1
	`

	queryListResultsByType = `
		SELECT id, partition_id, kind, result_type, source, event_ts, payload, created_at
		FROM nql_results
		WHERE result_type = $1
		ORDER BY created_at DESC, event_ts DESC
		LIMIT $2
	`

	queryGetResult = `
		SELECT id, partition_id, kind, result_type, source, event_ts, payload, created_at
		FROM nql_results
		WHERE id = $1
	`

	queryResultsTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'nql_results'
		)
	`
)

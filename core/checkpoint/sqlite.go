package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/davidahmann/loom/core/schema/v1/activity"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS activities (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id          TEXT NOT NULL,
	step_index        INTEGER NOT NULL,
	activity_type     TEXT NOT NULL,
	request_hash      TEXT NOT NULL,
	request_data      TEXT,
	response_data     TEXT,
	response_blob_ref TEXT,
	recorded_at       TEXT NOT NULL,
	duration_ms       INTEGER NOT NULL DEFAULT 0,
	error             TEXT
);

CREATE INDEX IF NOT EXISTS idx_activities_step
	ON activities (trace_id, step_index, id);

CREATE INDEX IF NOT EXISTS idx_activities_match
	ON activities (trace_id, step_index, activity_type, request_hash);
`

// SQLiteStore is a durable Checkpointer backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the activity database at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open activity db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate activity db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveActivity(ctx context.Context, record activity.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities
			(trace_id, step_index, activity_type, request_hash, request_data, response_data, response_blob_ref, recorded_at, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.TraceID,
		record.StepIndex,
		record.ActivityType,
		record.RequestHash,
		nullableText(record.RequestData),
		nullableText(record.ResponseData),
		nullableString(record.ResponseBlobRef),
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.DurationMs,
		nullableString(record.Error),
	)
	if err != nil {
		return fmt.Errorf("save activity: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ActivitiesForStep(ctx context.Context, traceID string, stepIndex int) ([]activity.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trace_id, step_index, activity_type, request_hash, request_data, response_data, response_blob_ref, recorded_at, duration_ms, error
		 FROM activities
		 WHERE trace_id = ? AND step_index = ?
		 ORDER BY id`,
		traceID, stepIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("query step activities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]activity.Record, 0)
	for rows.Next() {
		record, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step activities: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) ActivityByTypeAndHash(ctx context.Context, traceID string, stepIndex int, activityType, requestHash string) (activity.Record, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trace_id, step_index, activity_type, request_hash, request_data, response_data, response_blob_ref, recorded_at, duration_ms, error
		 FROM activities
		 WHERE trace_id = ? AND step_index = ? AND activity_type = ? AND request_hash = ?
		 ORDER BY id
		 LIMIT 1`,
		traceID, stepIndex, activityType, requestHash,
	)
	if err != nil {
		return activity.Record{}, false, fmt.Errorf("query activity by hash: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return activity.Record{}, false, fmt.Errorf("iterate activity by hash: %w", err)
		}
		return activity.Record{}, false, nil
	}
	record, err := scanActivity(rows)
	if err != nil {
		return activity.Record{}, false, err
	}
	return record, true, nil
}

func scanActivity(rows *sql.Rows) (activity.Record, error) {
	var (
		record      activity.Record
		requestData sql.NullString
		response    sql.NullString
		blobRef     sql.NullString
		recordedAt  string
		errText     sql.NullString
	)
	if err := rows.Scan(
		&record.TraceID,
		&record.StepIndex,
		&record.ActivityType,
		&record.RequestHash,
		&requestData,
		&response,
		&blobRef,
		&recordedAt,
		&record.DurationMs,
		&errText,
	); err != nil {
		return activity.Record{}, fmt.Errorf("scan activity: %w", err)
	}
	if requestData.Valid {
		record.RequestData = []byte(requestData.String)
	}
	if response.Valid {
		record.ResponseData = []byte(response.String)
	}
	record.ResponseBlobRef = blobRef.String
	record.Error = errText.String
	parsed, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return activity.Record{}, fmt.Errorf("parse recorded_at: %w", err)
	}
	record.Timestamp = parsed
	return record, nil
}

func nullableText(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

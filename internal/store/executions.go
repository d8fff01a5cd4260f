package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"toolforge/internal/primitive"
)

// InsertExecution appends a finalized execution record. Records are
// immutable once written; there is no update path.
func (s *Store) InsertExecution(rec *primitive.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	input, err := json.Marshal(rec.Input)
	if err != nil {
		input = []byte("{}")
	}
	var output sql.NullString
	if rec.Output != nil {
		if b, err := json.Marshal(rec.Output); err == nil {
			output = sql.NullString{String: string(b), Valid: true}
		}
	}

	res, err := s.db.Exec(`
		INSERT INTO execution_records
		(primitive_id, primitive_name, input, output, error, success, execution_time_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PrimitiveID, rec.PrimitiveName, string(input), output,
		nullString(rec.Error), boolInt(rec.Success), rec.ExecutionTimeMs,
		rec.StartedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		s.log.Error("failed to insert execution record",
			zap.String("primitive", rec.PrimitiveName), zap.Error(err))
		return err
	}

	rec.ID, _ = res.LastInsertId()
	return nil
}

// RecentExecutions returns the N most recent records across all
// primitives, newest first.
func (s *Store) RecentExecutions(limit int) ([]*primitive.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, primitive_id, primitive_name, input, output, error, success,
		       execution_time_ms, started_at
		FROM execution_records ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// ExecutionsForPrimitive returns the N most recent records for one
// primitive, newest first.
func (s *Store) ExecutionsForPrimitive(primitiveID string, limit int) ([]*primitive.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, primitive_id, primitive_name, input, output, error, success,
		       execution_time_ms, started_at
		FROM execution_records WHERE primitive_id = ?
		ORDER BY started_at DESC, id DESC LIMIT ?`, primitiveID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// CountExecutionsSince returns how many executions started at or after
// the given time. Feeds the rolling 24-hour count in registry stats.
func (s *Store) CountExecutionsSince(since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM execution_records WHERE started_at >= ?`,
		since.UTC().Format(timeFormat)).Scan(&count)
	return count, err
}

func scanExecutions(rows *sql.Rows) ([]*primitive.ExecutionRecord, error) {
	var recs []*primitive.ExecutionRecord
	for rows.Next() {
		var rec primitive.ExecutionRecord
		var input string
		var output, errMsg sql.NullString
		var success int
		var startedAt string

		err := rows.Scan(&rec.ID, &rec.PrimitiveID, &rec.PrimitiveName, &input,
			&output, &errMsg, &success, &rec.ExecutionTimeMs, &startedAt)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
			rec.Input = nil
		}
		if output.Valid {
			var out any
			if err := json.Unmarshal([]byte(output.String), &out); err == nil {
				rec.Output = out
			}
		}
		rec.Error = errMsg.String
		rec.Success = success == 1
		rec.StartedAt, _ = time.Parse(timeFormat, startedAt)

		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

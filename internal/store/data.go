package store

import (
	"database/sql"
	"errors"
	"time"
)

// Per-primitive key/value data. This table backs the data-access handle
// injected into the sandbox; every operation is scoped to one primitive
// id so handlers can never read or clobber each other's state.

// DataGet reads one value from a primitive's scope.
func (s *Store) DataGet(primitiveID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM primitive_data WHERE primitive_id = ? AND key = ?`,
		primitiveID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// DataSet writes one value into a primitive's scope.
func (s *Store) DataSet(primitiveID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO primitive_data (primitive_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(primitive_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		primitiveID, key, value, time.Now().UTC().Format(timeFormat))
	return err
}

// DataDelete removes one key from a primitive's scope. Deleting a
// missing key is a no-op.
func (s *Store) DataDelete(primitiveID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM primitive_data WHERE primitive_id = ? AND key = ?`,
		primitiveID, key)
	return err
}

// DataKeys lists all keys in a primitive's scope, sorted.
func (s *Store) DataKeys(primitiveID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT key FROM primitive_data WHERE primitive_id = ? ORDER BY key`,
		primitiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

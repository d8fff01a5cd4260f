package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"toolforge/internal/primitive"
)

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	Category    string
	Tags        []string
	EnabledOnly bool
	Limit       int
}

const primitiveColumns = `id, name, description, category, tags, icon, input_schema,
	handler, timeout_ms, sandboxed, enabled, built_in, version, created_at, updated_at`

// InsertPrimitive persists a new primitive. A duplicate name surfaces
// as primitive.ErrConflict.
func (s *Store) InsertPrimitive(p *primitive.Primitive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	inputSchema, err := json.Marshal(p.InputSchema)
	if err != nil {
		return fmt.Errorf("failed to encode input schema: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO primitives
		(id, name, description, category, tags, icon, input_schema, handler,
		 timeout_ms, sandboxed, enabled, built_in, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Category, string(tags), p.Icon,
		string(inputSchema), p.Handler, p.TimeoutMs, boolInt(p.Sandboxed),
		boolInt(p.Enabled), boolInt(p.BuiltIn), p.Version,
		p.CreatedAt.UTC().Format(timeFormat), p.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", primitive.ErrConflict, p.Name)
		}
		s.log.Error("failed to insert primitive", zap.String("name", p.Name), zap.Error(err))
		return err
	}

	s.log.Debug("primitive persisted", zap.String("id", p.ID), zap.String("name", p.Name))
	return nil
}

// UpdatePrimitive replaces the mutable columns of an existing row.
func (s *Store) UpdatePrimitive(p *primitive.Primitive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	inputSchema, err := json.Marshal(p.InputSchema)
	if err != nil {
		return fmt.Errorf("failed to encode input schema: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE primitives SET
			description = ?, category = ?, tags = ?, icon = ?, input_schema = ?,
			handler = ?, timeout_ms = ?, sandboxed = ?, enabled = ?, version = ?,
			updated_at = ?
		WHERE id = ?`,
		p.Description, p.Category, string(tags), p.Icon, string(inputSchema),
		p.Handler, p.TimeoutMs, boolInt(p.Sandboxed), boolInt(p.Enabled),
		p.Version, p.UpdatedAt.UTC().Format(timeFormat), p.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", primitive.ErrNotFound, p.ID)
	}
	return nil
}

// DeletePrimitive removes the row and the primitive's scoped data.
func (s *Store) DeletePrimitive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM primitives WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", primitive.ErrNotFound, id)
	}

	// Scoped data goes with the definition; execution records stay for
	// the audit trail.
	if _, err := s.db.Exec(`DELETE FROM primitive_data WHERE primitive_id = ?`, id); err != nil {
		s.log.Warn("failed to clear primitive data", zap.String("id", id), zap.Error(err))
	}

	s.log.Debug("primitive deleted", zap.String("id", id))
	return nil
}

// SetEnabled toggles the enabled flag. Idempotent.
func (s *Store) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE primitives SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolInt(enabled), time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", primitive.ErrNotFound, id)
	}
	return nil
}

// GetByID retrieves a primitive by its system id.
func (s *Store) GetByID(id string) (*primitive.Primitive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+primitiveColumns+` FROM primitives WHERE id = ?`, id)
	return s.scanPrimitive(row)
}

// GetByName retrieves a primitive by its unique name.
func (s *Store) GetByName(name string) (*primitive.Primitive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+primitiveColumns+` FROM primitives WHERE name = ?`, name)
	return s.scanPrimitive(row)
}

// List returns primitives matching the filter, newest first.
func (s *Store) List(filter ListFilter) ([]*primitive.Primitive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + primitiveColumns + ` FROM primitives`
	var conds []string
	var args []any

	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.EnabledOnly {
		conds = append(conds, "enabled = 1")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, name ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prims, err := s.scanPrimitives(rows)
	if err != nil {
		return nil, err
	}

	// Tag filtering happens in Go; tags are stored as a JSON array and
	// the set is small enough that a LIKE dance isn't worth it.
	if len(filter.Tags) > 0 {
		prims = filterByTags(prims, filter.Tags)
	}
	return prims, nil
}

// Search matches the query as a substring of name, description, or any
// tag, case-insensitively.
func (s *Store) Search(query string) ([]*primitive.Primitive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	like := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.Query(`
		SELECT `+primitiveColumns+` FROM primitives
		WHERE lower(name) LIKE ? OR lower(description) LIKE ? OR lower(tags) LIKE ?
		ORDER BY name ASC`, like, like, like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanPrimitives(rows)
}

func filterByTags(prims []*primitive.Primitive, want []string) []*primitive.Primitive {
	var out []*primitive.Primitive
	for _, p := range prims {
		have := make(map[string]bool, len(p.Tags))
		for _, t := range p.Tags {
			have[t] = true
		}
		match := true
		for _, t := range want {
			if !have[t] {
				match = false
				break
			}
		}
		if match {
			out = append(out, p)
		}
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanPrimitive(row rowScanner) (*primitive.Primitive, error) {
	var p primitive.Primitive
	var tags, inputSchema, createdAt, updatedAt string
	var sandboxed, enabled, builtIn int

	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &tags, &p.Icon,
		&inputSchema, &p.Handler, &p.TimeoutMs, &sandboxed, &enabled,
		&builtIn, &p.Version, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, primitive.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		p.Tags = nil
	}
	if err := json.Unmarshal([]byte(inputSchema), &p.InputSchema); err != nil {
		return nil, fmt.Errorf("corrupt input schema for %s: %w", p.Name, err)
	}

	p.Sandboxed = sandboxed == 1
	p.Enabled = enabled == 1
	p.BuiltIn = builtIn == 1
	p.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	p.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return &p, nil
}

func (s *Store) scanPrimitives(rows *sql.Rows) ([]*primitive.Primitive, error) {
	var prims []*primitive.Primitive
	for rows.Next() {
		p, err := s.scanPrimitive(rows)
		if err != nil {
			return nil, err
		}
		prims = append(prims, p)
	}
	return prims, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

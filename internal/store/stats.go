package store

// PrimitiveCounts holds aggregate registry counts straight from the
// primitives table. The mount cache layers its own view on top.
type PrimitiveCounts struct {
	Total      int
	Enabled    int
	ByCategory map[string]int
	BuiltIn    int
	Custom     int
}

// CountPrimitives computes aggregate counts in one pass.
func (s *Store) CountPrimitives() (*PrimitiveCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &PrimitiveCounts{ByCategory: make(map[string]int)}

	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(enabled), 0),
		       COALESCE(SUM(built_in), 0)
		FROM primitives`)
	if err := row.Scan(&counts.Total, &counts.Enabled, &counts.BuiltIn); err != nil {
		return nil, err
	}
	counts.Custom = counts.Total - counts.BuiltIn

	rows, err := s.db.Query(`SELECT category, COUNT(*) FROM primitives GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts.ByCategory[category] = count
	}
	return counts, rows.Err()
}

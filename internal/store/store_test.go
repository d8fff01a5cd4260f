package store

import (
	"errors"
	"testing"
	"time"

	"toolforge/internal/primitive"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPrimitive(id, name string) *primitive.Primitive {
	now := time.Now().UTC()
	return &primitive.Primitive{
		ID:          id,
		Name:        name,
		Description: "test primitive",
		Category:    "testing",
		Tags:        []string{"test"},
		InputSchema: primitive.InputSchema{
			Properties: map[string]primitive.Property{
				"message": {Type: "string"},
			},
			Required: []string{"message"},
		},
		Handler:   `func Run(input map[string]any) (any, error) { return input, nil }`,
		TimeoutMs: primitive.DefaultTimeoutMs,
		Sandboxed: true,
		Enabled:   true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertAndGetPrimitive(t *testing.T) {
	s := newTestStore(t)

	p := testPrimitive("id-1", "echo")
	if err := s.InsertPrimitive(p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := s.GetByID("id-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "echo" || got.Category != "testing" || !got.Sandboxed || !got.Enabled {
		t.Errorf("Round-trip mismatch: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "test" {
		t.Errorf("Tags mismatch: %v", got.Tags)
	}
	if !got.InputSchema.IsRequired("message") {
		t.Error("Input schema lost the required list")
	}

	byName, err := s.GetByName("echo")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if byName.ID != "id-1" {
		t.Errorf("GetByName returned %s", byName.ID)
	}
}

func TestInsertDuplicateNameConflicts(t *testing.T) {
	s := newTestStore(t)

	if err := s.InsertPrimitive(testPrimitive("id-1", "echo")); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := s.InsertPrimitive(testPrimitive("id-2", "echo"))
	if !errors.Is(err, primitive.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestGetMissingPrimitive(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByID("nope")
	if !errors.Is(err, primitive.ErrNotFound) {
		t.Errorf("GetByID: expected ErrNotFound, got %v", err)
	}
	_, err = s.GetByName("nope")
	if !errors.Is(err, primitive.ErrNotFound) {
		t.Errorf("GetByName: expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePrimitive(t *testing.T) {
	s := newTestStore(t)

	p := testPrimitive("id-1", "echo")
	if err := s.InsertPrimitive(p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	p.Description = "updated"
	p.Version = 2
	if err := s.UpdatePrimitive(p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := s.GetByID("id-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Description != "updated" || got.Version != 2 {
		t.Errorf("Update not applied: %+v", got)
	}

	missing := testPrimitive("ghost", "ghost")
	if err := s.UpdatePrimitive(missing); !errors.Is(err, primitive.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing row, got %v", err)
	}
}

func TestDeletePrimitiveKeepsExecutionRecords(t *testing.T) {
	s := newTestStore(t)

	p := testPrimitive("id-1", "echo")
	if err := s.InsertPrimitive(p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := s.DataSet("id-1", "k", "v"); err != nil {
		t.Fatalf("DataSet failed: %v", err)
	}
	rec := &primitive.ExecutionRecord{
		PrimitiveID:   "id-1",
		PrimitiveName: "echo",
		Success:       true,
		StartedAt:     time.Now(),
	}
	if err := s.InsertExecution(rec); err != nil {
		t.Fatalf("InsertExecution failed: %v", err)
	}

	if err := s.DeletePrimitive("id-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.GetByID("id-1"); !errors.Is(err, primitive.ErrNotFound) {
		t.Errorf("Primitive still present after delete: %v", err)
	}
	if _, found, _ := s.DataGet("id-1", "k"); found {
		t.Error("Scoped data survived delete")
	}
	recs, err := s.ExecutionsForPrimitive("id-1", 10)
	if err != nil {
		t.Fatalf("ExecutionsForPrimitive failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("Execution history lost on delete: got %d records", len(recs))
	}

	if err := s.DeletePrimitive("id-1"); !errors.Is(err, primitive.ErrNotFound) {
		t.Errorf("Second delete: expected ErrNotFound, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)

	a := testPrimitive("id-a", "alpha")
	a.Category = "text"
	a.Tags = []string{"fast", "pure"}
	b := testPrimitive("id-b", "beta")
	b.Category = "math"
	b.Enabled = false
	c := testPrimitive("id-c", "gamma")
	c.Category = "text"
	c.Tags = []string{"fast"}

	for _, p := range []*primitive.Primitive{a, b, c} {
		if err := s.InsertPrimitive(p); err != nil {
			t.Fatalf("Insert %s failed: %v", p.Name, err)
		}
	}

	all, err := s.List(ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 primitives, got %d", len(all))
	}

	text, err := s.List(ListFilter{Category: "text"})
	if err != nil {
		t.Fatalf("List(category) failed: %v", err)
	}
	if len(text) != 2 {
		t.Errorf("Expected 2 text primitives, got %d", len(text))
	}

	enabled, err := s.List(ListFilter{EnabledOnly: true})
	if err != nil {
		t.Fatalf("List(enabled) failed: %v", err)
	}
	if len(enabled) != 2 {
		t.Errorf("Expected 2 enabled primitives, got %d", len(enabled))
	}

	tagged, err := s.List(ListFilter{Tags: []string{"fast", "pure"}})
	if err != nil {
		t.Fatalf("List(tags) failed: %v", err)
	}
	if len(tagged) != 1 || tagged[0].Name != "alpha" {
		t.Errorf("Tag filter mismatch: %v", tagged)
	}

	limited, err := s.List(ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List(limit) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Limit ignored: got %d", len(limited))
	}
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)

	a := testPrimitive("id-a", "fetch_weather")
	a.Description = "Reads the forecast"
	a.Tags = []string{"network"}
	b := testPrimitive("id-b", "sum")
	b.Description = "Adds numbers"
	b.Tags = nil

	for _, p := range []*primitive.Primitive{a, b} {
		if err := s.InsertPrimitive(p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"WEATHER", 1},
		{"forecast", 1},
		{"network", 1},
		{"e", 2},
		{"zzz", 0},
	}
	for _, tt := range tests {
		got, err := s.Search(tt.query)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", tt.query, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q): expected %d results, got %d", tt.query, tt.want, len(got))
		}
	}
}

func TestSetEnabled(t *testing.T) {
	s := newTestStore(t)

	if err := s.InsertPrimitive(testPrimitive("id-1", "echo")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := s.SetEnabled("id-1", false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	got, _ := s.GetByID("id-1")
	if got.Enabled {
		t.Error("Primitive still enabled")
	}

	// Idempotent
	if err := s.SetEnabled("id-1", false); err != nil {
		t.Errorf("Repeated SetEnabled failed: %v", err)
	}

	if err := s.SetEnabled("ghost", true); !errors.Is(err, primitive.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestExecutionRecords(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		rec := &primitive.ExecutionRecord{
			PrimitiveID:     "id-1",
			PrimitiveName:   "echo",
			Input:           map[string]any{"n": float64(i)},
			Output:          map[string]any{"n": float64(i)},
			Success:         true,
			ExecutionTimeMs: int64(i * 10),
			StartedAt:       base.Add(time.Duration(i) * time.Second),
		}
		if err := s.InsertExecution(rec); err != nil {
			t.Fatalf("InsertExecution failed: %v", err)
		}
		if rec.ID == 0 {
			t.Error("InsertExecution did not backfill the record id")
		}
	}
	failed := &primitive.ExecutionRecord{
		PrimitiveID:   "id-2",
		PrimitiveName: "other",
		Error:         "boom",
		StartedAt:     base.Add(10 * time.Second),
	}
	if err := s.InsertExecution(failed); err != nil {
		t.Fatalf("InsertExecution failed: %v", err)
	}

	recent, err := s.RecentExecutions(10)
	if err != nil {
		t.Fatalf("RecentExecutions failed: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(recent))
	}
	if recent[0].PrimitiveName != "other" {
		t.Errorf("Newest record first: expected other, got %s", recent[0].PrimitiveName)
	}
	if recent[0].Success || recent[0].Error != "boom" {
		t.Errorf("Failure record mangled: %+v", recent[0])
	}

	forOne, err := s.ExecutionsForPrimitive("id-1", 2)
	if err != nil {
		t.Fatalf("ExecutionsForPrimitive failed: %v", err)
	}
	if len(forOne) != 2 {
		t.Errorf("Limit ignored: got %d", len(forOne))
	}

	count, err := s.CountExecutionsSince(base.Add(-time.Second))
	if err != nil {
		t.Fatalf("CountExecutionsSince failed: %v", err)
	}
	if count != 4 {
		t.Errorf("Expected 4 executions since base, got %d", count)
	}
	count, err = s.CountExecutionsSince(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CountExecutionsSince failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 future executions, got %d", count)
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.GetSetting("missing")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if ok {
		t.Error("Missing key reported as present")
	}

	if err := s.SetSetting("mode", "ask"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := s.SetSetting("mode", "autonomous"); err != nil {
		t.Fatalf("SetSetting overwrite failed: %v", err)
	}

	val, ok, err := s.GetSetting("mode")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if !ok || val != "autonomous" {
		t.Errorf("Expected autonomous, got %q (ok=%v)", val, ok)
	}
}

func TestPrimitiveDataScoping(t *testing.T) {
	s := newTestStore(t)

	if err := s.DataSet("p1", "shared", "one"); err != nil {
		t.Fatalf("DataSet failed: %v", err)
	}
	if err := s.DataSet("p2", "shared", "two"); err != nil {
		t.Fatalf("DataSet failed: %v", err)
	}
	if err := s.DataSet("p1", "extra", "x"); err != nil {
		t.Fatalf("DataSet failed: %v", err)
	}

	val, found, err := s.DataGet("p1", "shared")
	if err != nil || !found || val != "one" {
		t.Errorf("p1/shared: got %q found=%v err=%v", val, found, err)
	}
	val, found, _ = s.DataGet("p2", "shared")
	if !found || val != "two" {
		t.Errorf("p2/shared: got %q found=%v", val, found)
	}

	keys, err := s.DataKeys("p1")
	if err != nil {
		t.Fatalf("DataKeys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "extra" || keys[1] != "shared" {
		t.Errorf("p1 keys mismatch: %v", keys)
	}

	if err := s.DataDelete("p1", "shared"); err != nil {
		t.Fatalf("DataDelete failed: %v", err)
	}
	if _, found, _ := s.DataGet("p1", "shared"); found {
		t.Error("Deleted key still present")
	}
	if _, found, _ := s.DataGet("p2", "shared"); !found {
		t.Error("Delete leaked across scopes")
	}

	// Deleting a missing key is a no-op.
	if err := s.DataDelete("p1", "ghost"); err != nil {
		t.Errorf("Deleting a missing key failed: %v", err)
	}
}

func TestCountPrimitives(t *testing.T) {
	s := newTestStore(t)

	a := testPrimitive("id-a", "alpha")
	a.Category = "text"
	a.BuiltIn = true
	b := testPrimitive("id-b", "beta")
	b.Category = "math"
	b.Enabled = false
	c := testPrimitive("id-c", "gamma")
	c.Category = "text"

	for _, p := range []*primitive.Primitive{a, b, c} {
		if err := s.InsertPrimitive(p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	counts, err := s.CountPrimitives()
	if err != nil {
		t.Fatalf("CountPrimitives failed: %v", err)
	}
	if counts.Total != 3 || counts.Enabled != 2 || counts.BuiltIn != 1 || counts.Custom != 2 {
		t.Errorf("Counts mismatch: %+v", counts)
	}
	if counts.ByCategory["text"] != 2 || counts.ByCategory["math"] != 1 {
		t.Errorf("ByCategory mismatch: %v", counts.ByCategory)
	}
}

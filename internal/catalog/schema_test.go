package catalog

import "testing"

func TestAccumulateReportsAdded(t *testing.T) {
	s := NewSchema()
	result, err := s.Accumulate([]string{"a", "b"}, []string{"string", "integer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Added) != 2 {
		t.Fatalf("expected 2 added columns, got %d", len(result.Added))
	}
}

// P7: idempotent schema accumulation.
func TestAccumulateIdempotent(t *testing.T) {
	s := NewSchema()
	if _, err := s.Accumulate([]string{"a"}, []string{"string"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := s.Accumulate([]string{"a"}, []string{"string"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Added) != 0 {
		t.Fatalf("expected nothing added on re-accumulation, got %v", result.Added)
	}
}

func TestAccumulateConflict(t *testing.T) {
	s := NewSchema()
	if _, err := s.Accumulate([]string{"user_id"}, []string{"string"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := s.Accumulate([]string{"user_id"}, []string{"integer"})
	if err == nil {
		t.Fatal("expected a SchemaConflict error")
	}
}

func TestSchemaEqualIsValueEquality(t *testing.T) {
	a := NewSchema()
	a.Accumulate([]string{"x", "y"}, []string{"string", "integer"})
	b := NewSchema()
	b.Accumulate([]string{"y", "x"}, []string{"integer", "string"})
	if !a.Equal(b) {
		t.Fatal("schemas with the same column->type map in different insertion order should be equal")
	}
}

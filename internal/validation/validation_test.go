package validation

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"wpx-extend/internal/metadata"
)

func TestCheck(t *testing.T) {
	e := NewEvaluator()
	input := map[string]any{"email": "a@example.com", "count": 3, "name": ""}

	tests := []struct {
		name    string
		routine metadata.ValidationRoutine
		want    bool
		wantErr bool
	}{
		{"contains", metadata.ValidationRoutine{Field: "email", Expression: `value contains "@"`}, true, false},
		{"numeric", metadata.ValidationRoutine{Field: "count", Expression: `value > 5`}, false, false},
		{"not empty", metadata.ValidationRoutine{Field: "name", Expression: `len(value) > 0`}, false, false},
		{"cross field", metadata.ValidationRoutine{Field: "count", Expression: `input.email != "" && value >= 1`}, true, false},
		{"field name", metadata.ValidationRoutine{Field: "count", Expression: `field == "count"`}, true, false},
		{"syntax error", metadata.ValidationRoutine{Field: "count", Expression: `value >`}, false, true},
		{"not bool", metadata.ValidationRoutine{Field: "count", Expression: `value + 1`}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Check(tt.routine, input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("Check = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	e := NewEvaluator()
	routines := []metadata.ValidationRoutine{
		{Field: "zip", Expression: `len(value) == 5`},
		{Field: "email", Expression: `value contains "@"`},
		{Field: "age", Expression: `value >= 18`},
	}
	input := map[string]any{"zip": "123", "email": "nobody", "age": 30}

	got := e.Validate(routines, input)
	want := []Failure{
		{Field: "email", Expression: `value contains "@"`, Message: "validation failed"},
		{Field: "zip", Expression: `len(value) == 5`, Message: "validation failed"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("failures mismatch (-want +got):\n%s", diff)
	}
}

func TestProgramsAreCached(t *testing.T) {
	e := NewEvaluator()
	r := metadata.ValidationRoutine{Field: "a", Expression: `value == 1`}
	for i := 0; i < 3; i++ {
		if _, err := e.Check(r, map[string]any{"a": 1}); err != nil {
			t.Fatal(err)
		}
	}
	if len(e.cache) != 1 {
		t.Fatalf("cache size = %d, want 1", len(e.cache))
	}
}

func TestCompile(t *testing.T) {
	e := NewEvaluator()
	if err := e.Compile([]metadata.ValidationRoutine{{Field: "a", Expression: `value == 1`}}); err != nil {
		t.Fatal(err)
	}
	if err := e.Compile([]metadata.ValidationRoutine{{Field: "b", Expression: `)(`}}); err == nil {
		t.Fatal("expected compile error")
	}
}

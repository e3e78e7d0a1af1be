// Package validation evaluates the per-field validation routines attached
// to options pages.
package validation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"wpx-extend/internal/metadata"
)

// Failure is a field whose value did not pass its routine.
type Failure struct {
	Field      string `json:"field"`
	Expression string `json:"expression"`
	Message    string `json:"message"`
}

// Evaluator compiles routine expressions once and caches the programs by
// source. Expressions see value (the field's submitted value), field (its
// name) and input (every submitted value).
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

func (e *Evaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prog, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile routine: %w", err)
	}
	e.mu.Lock()
	e.cache[expression] = prog
	e.mu.Unlock()
	return prog, nil
}

// Check evaluates a single routine against input.
func (e *Evaluator) Check(r metadata.ValidationRoutine, input map[string]any) (bool, error) {
	prog, err := e.program(r.Expression)
	if err != nil {
		return false, err
	}

	env := map[string]any{
		"value": input[r.Field],
		"field": r.Field,
		"input": input,
	}
	result, err := expr.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("evaluate routine: %w", err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("routine did not return bool")
	}
	return ok, nil
}

// Validate runs every routine and returns the failures sorted by field.
// Routines that cannot be compiled or evaluated count as failures.
func (e *Evaluator) Validate(routines []metadata.ValidationRoutine, input map[string]any) []Failure {
	var failures []Failure
	for _, r := range routines {
		ok, err := e.Check(r, input)
		switch {
		case err != nil:
			failures = append(failures, Failure{Field: r.Field, Expression: r.Expression, Message: err.Error()})
		case !ok:
			failures = append(failures, Failure{Field: r.Field, Expression: r.Expression, Message: "validation failed"})
		}
	}
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Field < failures[j].Field })
	return failures
}

// Compile checks that every routine compiles. It returns the first error.
func (e *Evaluator) Compile(routines []metadata.ValidationRoutine) error {
	for _, r := range routines {
		if _, err := e.program(r.Expression); err != nil {
			return fmt.Errorf("field %s: %w", r.Field, err)
		}
	}
	return nil
}

// Package exprlang evaluates side-effect-free directive expressions with
// expr-lang. It is the lightweight alternative to the script runtime for
// trees that bind data only: no statements, no host node access.
package exprlang

import (
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator implements ports.Evaluator.
// Unknown identifiers evaluate to nil; the whole scope is reachable as $env.
type Evaluator struct {
	mu       sync.Mutex
	vm       vm.VM
	programs map[string]*vm.Program
}

// New creates an Evaluator with an empty program cache.
func New() *Evaluator {
	return &Evaluator{programs: make(map[string]*vm.Program)}
}

// Evaluate compiles text once and runs it against scope.
func (e *Evaluator) Evaluate(text string, scope domain.Context) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	program, err := e.compile(text)
	if err != nil {
		return nil, err
	}

	env := map[string]any(scope)
	if env == nil {
		env = map[string]any{}
	}
	out, err := e.vm.Run(program, env)
	if err != nil {
		return nil, &domain.EvaluationError{Expr: text, Err: err}
	}
	return out, nil
}

// Compile checks that text is a valid expression and caches it.
func (e *Evaluator) Compile(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.compile(text)
	return err
}

func (e *Evaluator) compile(text string) (*vm.Program, error) {
	if program, ok := e.programs[text]; ok {
		return program, nil
	}
	program, err := expr.Compile(text, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, &domain.EvaluationError{Expr: text, Err: err}
	}
	e.programs[text] = program
	return program, nil
}

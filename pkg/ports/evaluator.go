package ports

import (
	"golang.org/x/net/html"

	"github.com/aretw0/arbor/pkg/domain"
)

// Evaluator evaluates directive expression text against a scope.
// Every scope key is resolvable as a bare identifier and the whole scope is
// reachable as $env. Failures are returned as *domain.EvaluationError.
type Evaluator interface {
	Evaluate(expr string, scope domain.Context) (any, error)
}

// Hook is a lifecycle callable exposed by a component root.
type Hook func(arg domain.Context) (any, error)

// ScriptRunner runs component scripts. It must only be used from the render loop.
type ScriptRunner interface {
	Evaluator

	// RunScript executes source as a function body receiving protocol, root and
	// query helpers scoped to root.
	RunScript(source string, root *html.Node, protocol any) error

	// Hook returns the callable a script attached to root under name.
	Hook(root *html.Node, name string) (Hook, bool)

	// Release drops any script-side state held for the nodes of a destroyed subtree.
	Release(root *html.Node)
}

package script

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// Host is the application side scripts call back into.
type Host interface {
	// SetContext queues a context patch. It never renders re-entrantly.
	SetContext(patch domain.Context)
	// Context returns the current context.
	Context() domain.Context
	// LoadComponent loads and readies a component. It is called on the render loop.
	LoadComponent(locator string, protocol any) (*html.Node, error)
}

// Runtime implements ports.ScriptRunner.
type Runtime struct {
	vm       *goja.Runtime
	programs map[string]goja.Callable
	wrappers map[*html.Node]*goja.Object
	nodes    map[*goja.Object]*html.Node

	bus      ports.Dispatcher
	fetcher  ports.Fetcher
	host     Host
	document *html.Node
	apiBase  string
	logger   *slog.Logger
}

// Option configures the Runtime.
type Option func(*Runtime)

// WithLogger configures the logger used for console output and script failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithDispatcher sets the event bus behind addEventListener and dispatchEvent.
func WithDispatcher(bus ports.Dispatcher) Option {
	return func(r *Runtime) {
		r.bus = bus
	}
}

// WithFetcher sets the retrieval backend of get, post and api.
func WithFetcher(f ports.Fetcher) Option {
	return func(r *Runtime) {
		r.fetcher = f
	}
}

// WithAPIBase sets the prefix api() resolves relative paths against.
func WithAPIBase(base string) Option {
	return func(r *Runtime) {
		r.apiBase = base
	}
}

// New creates a Runtime with the script globals installed.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		vm:       goja.New(),
		programs: make(map[string]goja.Callable),
		wrappers: make(map[*html.Node]*goja.Object),
		nodes:    make(map[*goja.Object]*html.Node),
		apiBase:  "/api",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	r.installGlobals()
	return r
}

// SetHost connects the runtime to the application.
func (r *Runtime) SetHost(h Host) {
	r.host = h
}

// SetDocument sets the tree document-scoped helpers (select, selectId...) query.
func (r *Runtime) SetDocument(root *html.Node) {
	r.document = root
}

// Evaluate compiles expr once and evaluates it against scope.
func (r *Runtime) Evaluate(expr string, scope domain.Context) (any, error) {
	fn, err := r.program(expr)
	if err != nil {
		return nil, &domain.EvaluationError{Expr: expr, Err: err}
	}

	env := r.vm.NewObject()
	for k, v := range scope {
		if err := env.Set(k, r.toValue(v)); err != nil {
			return nil, &domain.EvaluationError{Expr: expr, Err: err}
		}
	}
	_ = env.Set("$env", env)

	res, err := fn(goja.Undefined(), env)
	if err != nil {
		return nil, &domain.EvaluationError{Expr: expr, Err: err}
	}
	out, err := r.settle(res)
	if err != nil {
		return nil, &domain.EvaluationError{Expr: expr, Err: err}
	}
	return out, nil
}

// Compile checks that expr is a valid expression or statement body and caches it.
func (r *Runtime) Compile(expr string) error {
	if _, err := r.program(expr); err != nil {
		return &domain.EvaluationError{Expr: expr, Err: err}
	}
	return nil
}

// CompileScript checks that source is a valid component script body.
func (r *Runtime) CompileScript(source string) error {
	if _, err := goja.Compile("", "(async function(protocol, root, select, selectAll, selectRef, selectId) {\n"+source+"\n})", false); err != nil {
		return &domain.EvaluationError{Expr: summary(source), Err: err}
	}
	return nil
}

func (r *Runtime) program(expr string) (goja.Callable, error) {
	if fn, ok := r.programs[expr]; ok {
		return fn, nil
	}
	v, err := r.vm.RunString("(function($env) { with ($env) { return (" + expr + "\n); } })")
	if err != nil {
		v, err = r.vm.RunString("(function($env) { with ($env) {\n" + expr + "\n} })")
		if err != nil {
			return nil, err
		}
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("expression did not compile to a function")
	}
	r.programs[expr] = fn
	return fn, nil
}

// RunScript executes source as the body of an async function receiving
// protocol, root and query helpers scoped to root.
func (r *Runtime) RunScript(source string, root *html.Node, protocol any) error {
	v, err := r.vm.RunString("(async function(protocol, root, select, selectAll, selectRef, selectId) {\n" + source + "\n})")
	if err != nil {
		return &domain.EvaluationError{Expr: summary(source), Err: err}
	}
	fn, _ := goja.AssertFunction(v)

	res, err := fn(goja.Undefined(),
		r.toValue(protocol),
		r.wrap(root),
		r.vm.ToValue(r.selectFrom(func() *html.Node { return root })),
		r.vm.ToValue(r.selectAllFrom(func() *html.Node { return root })),
		r.vm.ToValue(r.selectRefFrom(func() *html.Node { return root })),
		r.vm.ToValue(r.selectIDFrom(func() *html.Node { return root })),
	)
	if err == nil {
		_, err = r.settle(res)
	}
	if err != nil {
		return &domain.EvaluationError{Expr: summary(source), Err: err}
	}
	return nil
}

// Hook returns the function a script stored on root under name.
func (r *Runtime) Hook(root *html.Node, name string) (ports.Hook, bool) {
	obj, ok := r.wrappers[root]
	if !ok {
		return nil, false
	}
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		return nil, false
	}
	return func(arg domain.Context) (any, error) {
		res, err := fn(obj, r.toValue(arg))
		if err != nil {
			return nil, &domain.EvaluationError{Expr: name, Err: err}
		}
		return r.settle(res)
	}, true
}

// Release forgets the wrappers of every node in the subtree.
func (r *Runtime) Release(root *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if obj, ok := r.wrappers[n]; ok {
			delete(r.nodes, obj)
			delete(r.wrappers, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}

// settle unwraps a promise that already completed and exports the result.
func (r *Runtime) settle(v goja.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	if p, ok := v.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateRejected:
			return nil, fmt.Errorf("rejected: %s", p.Result().String())
		case goja.PromiseStatePending:
			r.logger.Warn("Promise still pending after evaluation, result dropped")
			return nil, nil
		}
		v = p.Result()
	}
	return r.export(v), nil
}

func summary(source string) string {
	s := strings.Join(strings.Fields(source), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

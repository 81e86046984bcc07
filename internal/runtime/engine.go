// Package runtime is the reactive render engine: it walks a host tree,
// evaluates directive attributes against the context and coordinates the
// asynchronous evaluations of a pass through a pending barrier.
package runtime

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/loop"
	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"golang.org/x/net/html"
)

// DefaultBarrierTimeout bounds how long SetContext waits for quiescence.
const DefaultBarrierTimeout = 10 * time.Second

// Engine applies directives over the document tree.
type Engine struct {
	loop    *loop.Loop
	store   ports.ContextStore
	eval    ports.Evaluator
	bus     ports.Dispatcher
	release func(*html.Node)
	timeout time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger

	// passMu serializes passes: one barrier is active at a time.
	passMu sync.Mutex

	// Guarded by the loop.
	root *html.Node
	meta map[*html.Node]*nodeMeta

	deferMu  sync.Mutex
	deferred domain.Context
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithBarrierTimeout sets how long a pass may wait for its pending
// evaluations. Zero or negative waits without bound.
func WithBarrierTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithDispatcher sets the event bus handlers are bound on.
func WithDispatcher(bus ports.Dispatcher) EngineOption {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithLoop shares a render loop with other components.
func WithLoop(l *loop.Loop) EngineOption {
	return func(e *Engine) {
		e.loop = l
	}
}

// WithRelease registers a callback run for every subtree the engine destroys.
func WithRelease(fn func(*html.Node)) EngineOption {
	return func(e *Engine) {
		e.release = fn
	}
}

// NewEngine creates an Engine reading and writing store and evaluating
// directive text with eval.
func NewEngine(store ports.ContextStore, eval ports.Evaluator, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   store,
		eval:    eval,
		timeout: DefaultBarrierTimeout,
		logger:  logging.NewNop(),
		meta:    make(map[*html.Node]*nodeMeta),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loop == nil {
		e.loop = loop.New()
	}
	if e.bus == nil {
		e.bus = dom.NewBus()
	}
	return e
}

// Loop returns the render loop. Tree mutations from outside the engine must run on it.
func (e *Engine) Loop() *loop.Loop { return e.loop }

// Dispatcher returns the event bus.
func (e *Engine) Dispatcher() ports.Dispatcher { return e.bus }

// SetRoot sets the document tree SetContext renders.
func (e *Engine) SetRoot(root *html.Node) {
	e.loop.Do(func() { e.root = root })
}

// SetContext merges patch into the store and re-renders the document, then
// waits for every evaluation the pass dispatched. Patches queued with Defer
// while the pass ran are applied by follow-up passes before it returns.
// It must not be called from the render loop.
func (e *Engine) SetContext(ctx context.Context, patch domain.Context) error {
	for {
		if err := e.pass(ctx, patch, nil); err != nil {
			return err
		}
		next, ok := e.takeDeferred()
		if !ok {
			return nil
		}
		patch = next
	}
}

// RenderSubtree renders node against the current context overlaid with patch,
// without touching the store.
func (e *Engine) RenderSubtree(ctx context.Context, node *html.Node, patch domain.Context) error {
	if err := e.pass(ctx, patch, node); err != nil {
		return err
	}
	return e.Flush(ctx)
}

// Trigger fires a signal on node and returns it once every listener ran.
// Context patches the listeners queued are applied before it returns.
func (e *Engine) Trigger(ctx context.Context, node *html.Node, name string, detail any) (*domain.Signal, error) {
	sig := domain.NewSignal(name, detail)
	e.loop.Do(func() { e.bus.Emit(node, sig) })
	return sig, e.Flush(ctx)
}

// Defer queues patch for the next pass. It is safe to call from the loop.
func (e *Engine) Defer(patch domain.Context) {
	e.deferMu.Lock()
	defer e.deferMu.Unlock()
	if e.deferred == nil {
		e.deferred = domain.Context{}
	}
	maps.Copy(e.deferred, patch)
}

// Flush applies queued patches.
func (e *Engine) Flush(ctx context.Context) error {
	patch, ok := e.takeDeferred()
	if !ok {
		return nil
	}
	return e.SetContext(ctx, patch)
}

func (e *Engine) takeDeferred() (domain.Context, bool) {
	e.deferMu.Lock()
	defer e.deferMu.Unlock()
	patch := e.deferred
	e.deferred = nil
	return patch, patch != nil
}

// Forget drops the render state and listeners of a subtree leaving the document.
func (e *Engine) Forget(node *html.Node) {
	e.loop.Do(func() { e.forget(node) })
}

func (e *Engine) pass(ctx context.Context, patch domain.Context, subtree *html.Node) error {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	start := time.Now()
	keys := slices.Sorted(maps.Keys(patch))
	if e.hooks.OnPassStart != nil {
		e.hooks.OnPassStart(ctx, &domain.PassEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventPassStart},
			Keys:      keys,
		})
	}

	var base domain.Context
	if subtree == nil {
		base = e.store.Merge(ctx, patch)
	} else {
		base = e.store.Read(ctx)
	}

	p := newPass(ctx, base)
	e.loop.Do(func() {
		root := subtree
		if root == nil {
			root = e.root
		}
		if root == nil {
			return
		}
		e.metaOf(root).processed = false
		e.renderPass(p, root, patch)
	})
	err := p.wait(ctx, e.timeout)

	e.logger.Debug("Render pass complete", "keys", keys, "dispatched", p.dispatched.Load(),
		"duration", time.Since(start), "err", err)
	if e.hooks.OnPassComplete != nil {
		e.hooks.OnPassComplete(ctx, &domain.PassEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventPassComplete},
			Keys:       keys,
			Dispatched: int(p.dispatched.Load()),
			Duration:   time.Since(start),
			Err:        err,
		})
	}
	return err
}

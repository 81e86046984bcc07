// Package router drives single-page navigation from "page=<name>" fragments.
//
// A transition runs unmount → load → mount. Both lifecycle hooks receive a
// fresh cancellation token through {cancel}; an unmount hook that returns its
// token vetoes the transition, a mount hook that returns its token skips the
// entry transition. Transitions never overlap: they are applied one at a time
// in arrival order.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/loop"
	"github.com/aretw0/arbor/pkg/component"
	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// Lifecycle hook names looked up on a view root.
const (
	HookMount   = "mount"
	HookUnmount = "unmount"
)

// Loader loads the component of a page.
type Loader interface {
	Load(ctx context.Context, locator string, protocol any) (*component.Instance, error)
}

// Renderer re-renders the document after a view change and forgets
// destroyed views.
type Renderer interface {
	SetContext(ctx context.Context, patch domain.Context) error
	Forget(node *html.Node)
}

// Hooks resolves lifecycle callables attached to a view root.
type Hooks interface {
	Hook(root *html.Node, name string) (ports.Hook, bool)
}

// Router is the fragment-driven navigation state machine.
type Router struct {
	loader   Loader
	renderer Renderer
	hooks    Hooks
	outlet   *html.Node

	loop      *loop.Loop
	bus       ports.Dispatcher
	locate    func(page string) string
	delay     time.Duration
	newToken  func() domain.Token
	lifecycle domain.LifecycleHooks
	logger    *slog.Logger

	// queue serializes transitions.
	queue sync.Mutex

	mu    sync.RWMutex
	state domain.RouteState
	view  *component.Instance
}

// Option configures the Router.
type Option func(*Router)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Router) {
		r.lifecycle = hooks
	}
}

// WithTransitionDelay sets the duration of the exit and entry transitions.
func WithTransitionDelay(d time.Duration) Option {
	return func(r *Router) {
		r.delay = d
	}
}

// WithLocator maps a page name to its component locator.
// The default is "<page>.html".
func WithLocator(fn func(page string) string) Option {
	return func(r *Router) {
		r.locate = fn
	}
}

// WithLoop shares the render loop hooks and tree mutations run on.
func WithLoop(l *loop.Loop) Option {
	return func(r *Router) {
		r.loop = l
	}
}

// WithDispatcher sets the bus lifecycle signals are fired on.
func WithDispatcher(bus ports.Dispatcher) Option {
	return func(r *Router) {
		r.bus = bus
	}
}

// WithTokens overrides the cancellation token source.
func WithTokens(fn func() domain.Token) Option {
	return func(r *Router) {
		r.newToken = fn
	}
}

// New creates a Router mounting views into outlet.
func New(loader Loader, renderer Renderer, hooks Hooks, outlet *html.Node, opts ...Option) *Router {
	r := &Router{
		loader:   loader,
		renderer: renderer,
		hooks:    hooks,
		outlet:   outlet,
		locate:   component.HTMLLocator,
		newToken: func() domain.Token { return domain.Token(uuid.NewString()) },
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loop == nil {
		r.loop = loop.New()
	}
	if r.bus == nil {
		r.bus = dom.NewBus()
	}
	return r
}

// State returns the current route state.
func (r *Router) State() domain.RouteState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Page returns the current page name.
func (r *Router) Page() string {
	return r.State().Page
}

// View returns the mounted component, or nil before the first navigation.
func (r *Router) View() *component.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

// Run navigates to every fragment received until the channel closes or ctx
// is done. Failed transitions are logged and do not stop the loop.
func (r *Router) Run(ctx context.Context, fragments <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fragment, ok := <-fragments:
			if !ok {
				return nil
			}
			if _, err := r.Navigate(ctx, fragment); err != nil {
				r.logger.Error("Navigation failed", "fragment", fragment, "err", err)
			}
		}
	}
}

// Navigate applies one fragment. It must not be called from the render loop.
func (r *Router) Navigate(ctx context.Context, fragment string) (outcome domain.Outcome, err error) {
	page, ok := domain.ParseFragment(fragment)
	if !ok {
		r.logger.Debug("Fragment ignored", "fragment", fragment)
		return domain.OutcomeIgnored, nil
	}

	r.queue.Lock()
	defer r.queue.Unlock()

	start := time.Now()
	from := r.Page()
	defer func() {
		r.logger.Info("Navigation", "from", from, "to", page, "outcome", outcome, "err", err)
		if r.lifecycle.OnNavigate != nil {
			r.lifecycle.OnNavigate(ctx, &domain.NavigationEvent{
				EventBase: domain.EventBase{Timestamp: start, Type: domain.EventNavigate},
				From:      from,
				To:        page,
				Outcome:   outcome,
				Duration:  time.Since(start),
				Err:       err,
			})
		}
	}()

	if current := r.View(); current != nil {
		if r.callHook(current.Root, HookUnmount) {
			r.loop.Do(func() {
				r.bus.Emit(r.outlet, domain.NewSignal(domain.SignalPageCancel, map[string]any{
					"page":    page,
					"current": from,
				}))
			})
			return domain.OutcomeVetoed, nil
		}
		if err := r.wait(ctx); err != nil {
			return "", err
		}
		r.loop.Do(func() { dom.Unmount(r.bus, r.outlet, current.Root) })
		r.renderer.Forget(current.Root)
		r.setView(nil, r.State())
	}

	inst, err := r.loader.Load(ctx, r.locate(page), nil)
	if err != nil {
		return "", fmt.Errorf("loading page %s: %w", page, err)
	}
	r.loop.Do(func() {
		dom.Hide(inst.Root)
		r.outlet.AppendChild(inst.Root)
	})
	r.setView(inst, domain.RouteState{Page: page, Previous: from})

	if err := r.renderer.SetContext(ctx, domain.Context{
		domain.KeyPageBack: domain.PageFragment(from),
		domain.KeyPage:     page,
	}); err != nil {
		r.logger.Warn("Render after navigation incomplete", "page", page, "err", err)
	}

	outcome = domain.OutcomeNavigated
	if r.callHook(inst.Root, HookMount) {
		outcome = domain.OutcomeSilent
	} else if err := r.wait(ctx); err != nil {
		return "", err
	}
	r.loop.Do(func() {
		dom.Show(inst.Root)
		r.bus.Emit(inst.Root, domain.NewSignal(domain.SignalMounted, nil))
	})
	return outcome, nil
}

func (r *Router) setView(inst *component.Instance, state domain.RouteState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = inst
	r.state = state
}

// callHook invokes the named hook of root with a fresh token and reports
// whether the hook returned it.
func (r *Router) callHook(root *html.Node, name string) bool {
	token := r.newToken()
	var matched bool
	r.loop.Do(func() {
		hook, ok := r.hooks.Hook(root, name)
		if !ok {
			return
		}
		res, err := hook(domain.Context{"cancel": func() string { return string(token) }})
		if err != nil {
			r.logger.Warn("Lifecycle hook failed", "hook", name, "err", err)
			return
		}
		s, ok := res.(string)
		matched = ok && domain.Token(s) == token
	})
	return matched
}

// wait sleeps for one transition.
func (r *Router) wait(ctx context.Context) error {
	if r.delay <= 0 {
		return nil
	}
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

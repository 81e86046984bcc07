// Package component retrieves markup fragments and turns them into ready
// component instances: a detached tree whose scripts have run.
package component

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/loop"
	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"golang.org/x/net/html"
)

var errNoRoot = errors.New("markup has no root element")

// Instance is a loaded component.
type Instance struct {
	Locator  string
	Root     *html.Node
	Protocol any

	ready chan struct{}
}

// Ready is closed once every script of the component has run.
func (i *Instance) Ready() <-chan struct{} { return i.ready }

// Wait blocks until the instance is ready or ctx is done.
func (i *Instance) Wait(ctx context.Context) error {
	select {
	case <-i.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type block struct {
	src    string
	source string
}

// Loader loads components through a fetcher and runs their scripts on the
// render loop.
type Loader struct {
	fetcher ports.Fetcher
	runner  ports.ScriptRunner
	bus     ports.Dispatcher
	loop    *loop.Loop
	hooks   domain.LifecycleHooks
	logger  *slog.Logger

	mu     sync.Mutex
	markup map[string][]byte
	// loaded is the set of external script sources already executed.
	loaded map[string]bool
}

// Option configures the Loader.
type Option func(*Loader)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(l *Loader) {
		l.hooks = hooks
	}
}

// WithDispatcher sets the bus the ready signal is fired on.
func WithDispatcher(bus ports.Dispatcher) Option {
	return func(l *Loader) {
		l.bus = bus
	}
}

// WithLoop shares the render loop scripts run on.
func WithLoop(lp *loop.Loop) Option {
	return func(l *Loader) {
		l.loop = lp
	}
}

// NewLoader creates a Loader.
func NewLoader(fetcher ports.Fetcher, runner ports.ScriptRunner, opts ...Option) *Loader {
	l := &Loader{
		fetcher: fetcher,
		runner:  runner,
		logger:  logging.NewNop(),
		markup:  make(map[string][]byte),
		loaded:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.loop == nil {
		l.loop = loop.New()
	}
	if l.bus == nil {
		l.bus = dom.NewBus()
	}
	return l
}

// Load retrieves locator, instantiates it and runs its scripts with protocol.
// It must not be called from the render loop; see LoadLocked.
//
// Scripts run to completion synchronously. A promise still pending when a
// script body returns is logged and dropped, and ready fires anyway, so scripts
// must not depend on work that needs an event loop, such as timers or awaited
// fetches.
func (l *Loader) Load(ctx context.Context, locator string, protocol any) (*Instance, error) {
	return l.load(ctx, locator, protocol, l.loop.Do)
}

// LoadLocked is Load for callers already running on the render loop, such as
// scripts loading nested components.
func (l *Loader) LoadLocked(ctx context.Context, locator string, protocol any) (*Instance, error) {
	return l.load(ctx, locator, protocol, func(fn func()) { fn() })
}

// LoadComponent loads locator and returns its root once ready.
func (l *Loader) LoadComponent(ctx context.Context, locator string, protocol any) (*html.Node, error) {
	inst, err := l.Load(ctx, locator, protocol)
	if err != nil {
		return nil, err
	}
	if err := inst.Wait(ctx); err != nil {
		return nil, err
	}
	return inst.Root, nil
}

// LoadHTML is LoadComponent with the .html suffix appended when missing.
func (l *Loader) LoadHTML(ctx context.Context, name string, protocol any) (*html.Node, error) {
	return l.LoadComponent(ctx, HTMLLocator(name), protocol)
}

// HTMLLocator appends .html to name unless it already ends with it.
func HTMLLocator(name string) string {
	if strings.HasSuffix(name, ".html") {
		return name
	}
	return name + ".html"
}

func (l *Loader) load(ctx context.Context, locator string, protocol any, onLoop func(func())) (inst *Instance, err error) {
	start := time.Now()
	ev := &domain.ComponentEvent{
		EventBase: domain.EventBase{Timestamp: start, Type: domain.EventComponentLoad},
		Locator:   locator,
	}
	defer func() {
		ev.Duration = time.Since(start)
		ev.Err = err
		if l.hooks.OnComponentLoad != nil {
			l.hooks.OnComponentLoad(ctx, ev)
		}
	}()

	markup, cached, err := l.retrieve(ctx, locator)
	if err != nil {
		return nil, err
	}
	ev.Cached = cached

	nodes, err := dom.ParseFragment(string(markup))
	if err != nil {
		return nil, &domain.RetrievalError{Locator: locator, Err: err}
	}
	root := dom.FirstElement(nodes)
	if root == nil {
		return nil, &domain.RetrievalError{Locator: locator, Err: errNoRoot}
	}
	blocks := collectScripts(nodes)
	ev.Scripts = len(blocks)

	external, failed := l.fetchExternal(ctx, blocks)
	ev.Failures = len(failed)

	inst = &Instance{Locator: locator, Root: root, Protocol: protocol, ready: make(chan struct{})}
	onLoop(func() {
		for _, b := range blocks {
			if b.src == "" {
				continue
			}
			source, ok := external[b.src]
			if !ok {
				continue
			}
			if err := l.runner.RunScript(source, root, protocol); err != nil {
				ev.Failures++
				l.logger.Warn("Component script failed", "locator", locator, "src", b.src, "err", err)
			}
		}
		for _, b := range blocks {
			if b.src != "" {
				continue
			}
			if err := l.runner.RunScript(b.source, root, protocol); err != nil {
				ev.Failures++
				l.logger.Warn("Component script failed", "locator", locator, "err", err)
			}
		}
		close(inst.ready)
		l.bus.Emit(root, domain.NewSignal(domain.SignalReady, protocol))
	})

	l.logger.Debug("Component loaded", "locator", locator, "cached", cached,
		"scripts", len(blocks), "failures", ev.Failures)
	return inst, nil
}

// retrieve returns the markup of locator, fetching it on first use.
func (l *Loader) retrieve(ctx context.Context, locator string) ([]byte, bool, error) {
	l.mu.Lock()
	markup, ok := l.markup[locator]
	l.mu.Unlock()
	if ok {
		return markup, true, nil
	}

	markup, err := l.fetcher.Fetch(ctx, locator)
	if err != nil {
		var re *domain.RetrievalError
		if !errors.As(err, &re) {
			err = &domain.RetrievalError{Locator: locator, Err: err}
		}
		return nil, false, err
	}

	l.mu.Lock()
	l.markup[locator] = markup
	l.mu.Unlock()
	return markup, false, nil
}

// fetchExternal retrieves the external scripts not yet executed and claims
// them in the loaded set. Sources that could not be fetched are returned
// separately.
func (l *Loader) fetchExternal(ctx context.Context, blocks []block) (map[string]string, []string) {
	out := make(map[string]string)
	var failed []string
	for _, b := range blocks {
		if b.src == "" {
			continue
		}
		l.mu.Lock()
		seen := l.loaded[b.src]
		l.loaded[b.src] = true
		l.mu.Unlock()
		if seen {
			continue
		}

		body, err := l.fetcher.Fetch(ctx, b.src)
		if err != nil {
			l.logger.Warn("External script unavailable", "src", b.src, "err", err)
			failed = append(failed, b.src)
			l.mu.Lock()
			delete(l.loaded, b.src)
			l.mu.Unlock()
			continue
		}
		out[b.src] = string(body)
	}
	return out, failed
}

// collectScripts gathers the script blocks of a fragment in document order
// and removes them from the tree.
func collectScripts(nodes []*html.Node) []block {
	var blocks []block
	var scripts []*html.Node
	for _, top := range nodes {
		dom.Walk(top, func(n *html.Node) {
			if n.Type != html.ElementNode || n.Data != "script" {
				return
			}
			src, _ := dom.Attr(n, "src")
			blocks = append(blocks, block{src: src, source: dom.Text(n)})
			scripts = append(scripts, n)
		})
	}
	for _, s := range scripts {
		dom.Detach(s)
	}
	return blocks
}

package arbor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/arbor/internal/adapters/file"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/loop"
	"github.com/aretw0/arbor/internal/runtime"
	httpadapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/component"
	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/exprlang"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/router"
	"github.com/aretw0/arbor/pkg/script"
	"github.com/aretw0/arbor/pkg/state"
	"golang.org/x/net/html"
)

// Version is the arbor release.
const Version = "0.1.0"

// Evaluator names accepted by WithEvaluator.
const (
	EvaluatorJS   = "js"
	EvaluatorExpr = "expr"
)

// DefaultOutlet is the selector of the element views are mounted into.
const DefaultOutlet = "#app"

// ErrNotOpen is returned by document operations before Open succeeded.
var ErrNotOpen = errors.New("no document open")

// App wires the context store, render engine, component loader and router
// over one document.
type App struct {
	loop    *loop.Loop
	bus     *dom.Bus
	scripts *script.Runtime
	store   *state.Store
	engine  *runtime.Engine
	loader  *component.Loader
	router  *router.Router
	blobs   ports.BlobStore
	fetcher ports.Fetcher

	doc    *html.Node
	outlet *html.Node

	settings settings
	logger   *slog.Logger
}

type settings struct {
	fetcher       ports.Fetcher
	baseURL       string
	components    fs.FS
	componentsDir string
	blobs         ports.BlobStore
	storeKey      string
	encryptionKey []byte
	masked        []string
	locker        ports.DistributedLocker
	lockTTL       time.Duration
	evaluator     string
	outlet        string
	barrier       time.Duration
	transition    time.Duration
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
}

// Option configures an App.
type Option func(*settings)

// WithLogger sets the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) {
		s.hooks = domain.Combine(s.hooks, hooks)
	}
}

// WithFetcher replaces the markup retrieval chain.
func WithFetcher(f ports.Fetcher) Option {
	return func(s *settings) {
		s.fetcher = f
	}
}

// WithBaseURL retrieves markup over HTTP from base before falling back to
// the bundled components.
func WithBaseURL(base string) Option {
	return func(s *settings) {
		s.baseURL = base
	}
}

// WithComponents sets the bundled component tree.
func WithComponents(fsys fs.FS) Option {
	return func(s *settings) {
		s.components = fsys
	}
}

// WithComponentsDir reads bundled components from a directory.
func WithComponentsDir(dir string) Option {
	return func(s *settings) {
		s.componentsDir = dir
	}
}

// WithBlobStore sets where the context blob is persisted. The default keeps
// it in memory. A store implementing io.Closer is closed by App.Close.
func WithBlobStore(store ports.BlobStore) Option {
	return func(s *settings) {
		s.blobs = store
	}
}

// WithStoreKey names the persisted context blob.
func WithStoreKey(key string) Option {
	return func(s *settings) {
		s.storeKey = key
	}
}

// WithEncryptionKey encrypts the persisted blob with AES-256-GCM.
func WithEncryptionKey(key []byte) Option {
	return func(s *settings) {
		s.encryptionKey = key
	}
}

// WithMaskedKeys masks the values of context entries whose key matches one
// of the regular expressions before the blob is persisted. In-memory values
// are unaffected.
func WithMaskedKeys(patterns ...string) Option {
	return func(s *settings) {
		s.masked = append(s.masked, patterns...)
	}
}

// WithLocker serializes merges across processes sharing the blob store.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *settings) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithEvaluator selects the directive expression language: "js" or "expr".
func WithEvaluator(name string) Option {
	return func(s *settings) {
		s.evaluator = name
	}
}

// WithOutlet sets the selector of the view container.
func WithOutlet(selector string) Option {
	return func(s *settings) {
		s.outlet = selector
	}
}

// WithBarrierTimeout bounds how long a render pass waits for its pending
// evaluations. Zero or negative waits without bound.
func WithBarrierTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.barrier = d
	}
}

// WithTransitionDelay sets the router's exit and entry transition length.
func WithTransitionDelay(d time.Duration) Option {
	return func(s *settings) {
		s.transition = d
	}
}

// New assembles an App. Open must be called before rendering.
func New(opts ...Option) (*App, error) {
	s := settings{
		storeKey:  state.DefaultKey,
		evaluator: EvaluatorJS,
		outlet:    DefaultOutlet,
		barrier:   runtime.DefaultBarrierTimeout,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	a := &App{
		loop:     loop.New(),
		bus:      dom.NewBus(),
		settings: s,
		logger:   s.logger,
	}

	fetcher, err := s.fetchChain()
	if err != nil {
		return nil, err
	}
	a.fetcher = fetcher

	a.blobs = s.blobs
	if a.blobs == nil {
		a.blobs = memory.NewStore()
	}
	var mws []middleware.Middleware
	if len(s.masked) > 0 {
		for _, p := range s.masked {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid mask pattern: %w", err)
			}
		}
		mws = append(mws, middleware.NewPIIMiddleware(s.masked))
	}
	if len(s.encryptionKey) > 0 {
		if len(s.encryptionKey) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(s.encryptionKey))
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey: s.encryptionKey,
		}))
	}
	blobs := middleware.Chain(a.blobs, mws...)

	storeOpts := []state.Option{state.WithKey(s.storeKey), state.WithLogger(s.logger)}
	if s.locker != nil {
		storeOpts = append(storeOpts, state.WithLocker(s.locker, s.lockTTL))
	}
	a.store = state.New(blobs, storeOpts...)

	a.scripts = script.New(
		script.WithLogger(s.logger),
		script.WithDispatcher(a.bus),
		script.WithFetcher(fetcher),
	)
	a.scripts.SetHost(host{a})

	var eval ports.Evaluator
	switch strings.ToLower(s.evaluator) {
	case EvaluatorJS, "":
		eval = a.scripts
	case EvaluatorExpr:
		eval = exprlang.New()
	default:
		return nil, fmt.Errorf("unknown evaluator %q", s.evaluator)
	}

	a.engine = runtime.NewEngine(a.store, eval,
		runtime.WithLoop(a.loop),
		runtime.WithDispatcher(a.bus),
		runtime.WithRelease(a.scripts.Release),
		runtime.WithBarrierTimeout(s.barrier),
		runtime.WithLifecycleHooks(s.hooks),
		runtime.WithLogger(s.logger),
	)
	a.loader = component.NewLoader(fetcher, a.scripts,
		component.WithLoop(a.loop),
		component.WithDispatcher(a.bus),
		component.WithLifecycleHooks(s.hooks),
		component.WithLogger(s.logger),
	)
	return a, nil
}

// fetchChain builds network-then-bundled retrieval.
func (s settings) fetchChain() (ports.Fetcher, error) {
	if s.fetcher != nil {
		return s.fetcher, nil
	}
	var chain component.Chain
	if s.baseURL != "" {
		f, err := httpadapter.NewFetcher(s.baseURL)
		if err != nil {
			return nil, err
		}
		chain = append(chain, f)
	}
	switch {
	case s.components != nil:
		chain = append(chain, file.NewFetcherFS(s.components))
	case s.componentsDir != "":
		chain = append(chain, file.NewFetcher(s.componentsDir))
	}
	if len(chain) == 0 {
		chain = append(chain, file.NewFetcher("."))
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

// Open retrieves the document at locator, renders it against the current
// context and prepares the router on its outlet.
func (a *App) Open(ctx context.Context, locator string) error {
	data, err := a.fetcher.Fetch(ctx, locator)
	if err != nil {
		return err
	}
	doc, err := dom.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse document %s: %w", locator, err)
	}
	outlet, err := dom.Query(doc, a.settings.outlet)
	if err != nil {
		return err
	}
	if outlet == nil {
		return fmt.Errorf("outlet %q not found in %s", a.settings.outlet, locator)
	}

	a.loop.Do(func() {
		a.doc = doc
		a.outlet = outlet
		a.scripts.SetDocument(doc)
	})
	a.engine.SetRoot(doc)
	a.router = router.New(a.loader, a.engine, a.scripts, outlet,
		router.WithLoop(a.loop),
		router.WithDispatcher(a.bus),
		router.WithTransitionDelay(a.settings.transition),
		router.WithLifecycleHooks(a.settings.hooks),
		router.WithLogger(a.logger),
	)

	a.logger.Debug("document opened", "locator", locator)
	return a.engine.SetContext(ctx, nil)
}

// Navigate drives the router to fragment.
func (a *App) Navigate(ctx context.Context, fragment string) (domain.Outcome, error) {
	if a.router == nil {
		return "", ErrNotOpen
	}
	return a.router.Navigate(ctx, fragment)
}

// Run navigates to every fragment received until ctx is done or the channel closes.
func (a *App) Run(ctx context.Context, fragments <-chan string) error {
	if a.router == nil {
		return ErrNotOpen
	}
	return a.router.Run(ctx, fragments)
}

// Route returns the router state.
func (a *App) Route() domain.RouteState {
	if a.router == nil {
		return domain.RouteState{}
	}
	return a.router.State()
}

// SetContext merges patch into the context and re-renders the document.
func (a *App) SetContext(ctx context.Context, patch domain.Context) error {
	if a.router == nil {
		a.store.Merge(ctx, patch)
		return nil
	}
	return a.engine.SetContext(ctx, patch)
}

// Context returns a copy of the current context.
func (a *App) Context(ctx context.Context) domain.Context {
	return a.store.Read(ctx)
}

// RegisterHandler exposes fn to expressions under key. Handlers are never persisted.
func (a *App) RegisterHandler(key string, fn any) {
	a.store.RegisterHandler(key, fn)
}

// Trigger fires the named signal on node and applies the context patches its
// handlers queued.
func (a *App) Trigger(ctx context.Context, node *html.Node, name string, detail any) (*domain.Signal, error) {
	return a.engine.Trigger(ctx, node, name, detail)
}

// Query returns the first document element matching selector.
func (a *App) Query(selector string) (*html.Node, error) {
	var (
		n   *html.Node
		err error
	)
	a.loop.Do(func() {
		if a.doc == nil {
			err = ErrNotOpen
			return
		}
		n, err = dom.Query(a.doc, selector)
	})
	return n, err
}

// LoadComponent loads locator and returns its ready, detached root.
func (a *App) LoadComponent(ctx context.Context, locator string, protocol any) (*html.Node, error) {
	return a.loader.LoadComponent(ctx, locator, protocol)
}

// Render writes the current document.
func (a *App) Render(w io.Writer) error {
	return a.loop.DoErr(func() error {
		if a.doc == nil {
			return ErrNotOpen
		}
		return dom.Render(w, a.doc)
	})
}

// RenderPage navigates to fragment and writes the resulting document.
func (a *App) RenderPage(ctx context.Context, w io.Writer, fragment string) error {
	if _, err := a.Navigate(ctx, fragment); err != nil {
		return err
	}
	return a.Render(w)
}

// Close releases the blob store.
func (a *App) Close() error {
	if c, ok := a.blobs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// host is the script-facing side of the App. It runs on the render loop.
type host struct{ a *App }

func (h host) SetContext(patch domain.Context) {
	h.a.engine.Defer(patch)
}

func (h host) Context() domain.Context {
	return h.a.store.Read(context.Background())
}

func (h host) LoadComponent(locator string, protocol any) (*html.Node, error) {
	inst, err := h.a.loader.LoadLocked(context.Background(), locator, protocol)
	if err != nil {
		return nil, err
	}
	return inst.Root, nil
}

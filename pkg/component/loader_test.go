package component_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/component"
	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher counts retrievals per locator.
type countingFetcher struct {
	inner *memory.Fetcher
	calls map[string]int
}

func newCounting(files map[string]string) *countingFetcher {
	return &countingFetcher{inner: memory.NewFetcher(files), calls: map[string]int{}}
}

func (c *countingFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	c.calls[locator]++
	return c.inner.Fetch(ctx, locator)
}

func (c *countingFetcher) Post(ctx context.Context, locator string, body []byte) ([]byte, error) {
	return c.inner.Post(ctx, locator, body)
}

func TestLoad_RunsScriptsInOrder(t *testing.T) {
	fetcher := newCounting(map[string]string{
		"card.html": `<article class="card"><h2 data-ref="title"></h2></article>
			<script>selectRef("title").textContent += "b";</script>
			<script src="lib.js"></script>
			<script>selectRef("title").textContent += "c:" + protocol.name;</script>`,
		"lib.js": `selectRef("title").textContent = "a";`,
	})
	bus := dom.NewBus()
	rt := script.New(script.WithDispatcher(bus))
	loader := component.NewLoader(fetcher, rt, component.WithDispatcher(bus))

	inst, err := loader.Load(context.Background(), "card.html", map[string]any{"name": "x"})
	require.NoError(t, err)

	<-inst.Ready()
	assert.Equal(t, "article", inst.Root.Data)
	title, err := dom.Query(inst.Root, "h2")
	require.NoError(t, err)
	assert.Equal(t, "abc:x", dom.Text(title), "external scripts run before inline ones")

	scripts, err := dom.QueryAll(inst.Root, "script")
	require.NoError(t, err)
	assert.Empty(t, scripts)
}

func TestLoad_CachesMarkupAndDedupesExternalScripts(t *testing.T) {
	fetcher := newCounting(map[string]string{
		"a.html": `<div></div><script src="shared.js"></script>`,
		"b.html": `<div></div><script src="shared.js"></script>`,
		"shared.js": `count = (typeof count === "undefined" ? 0 : count) + 1; root.textContent = count;`,
	})
	rt := script.New()
	loader := component.NewLoader(fetcher, rt)
	ctx := context.Background()

	first, err := loader.Load(ctx, "a.html", nil)
	require.NoError(t, err)
	_, err = loader.Load(ctx, "a.html", nil)
	require.NoError(t, err)
	_, err = loader.Load(ctx, "b.html", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls["a.html"])
	assert.Equal(t, 1, fetcher.calls["shared.js"])
	assert.Equal(t, "1", dom.Text(first.Root))
}

func TestLoad_ScriptFailureDoesNotStopLaterScripts(t *testing.T) {
	fetcher := newCounting(map[string]string{
		"x.html": `<p></p><script>throw new Error("bad")</script><script>root.textContent = "ran"</script>`,
	})
	var failures atomic.Int32
	loader := component.NewLoader(fetcher, script.New(), component.WithLifecycleHooks(domain.LifecycleHooks{
		OnComponentLoad: func(_ context.Context, ev *domain.ComponentEvent) {
			failures.Store(int32(ev.Failures))
		},
	}))

	inst, err := loader.Load(context.Background(), "x.html", nil)

	require.NoError(t, err)
	assert.Equal(t, "ran", dom.Text(inst.Root))
	assert.EqualValues(t, 1, failures.Load())
}

func TestLoad_RetrievalError(t *testing.T) {
	loader := component.NewLoader(newCounting(nil), script.New())

	_, err := loader.Load(context.Background(), "missing.html", nil)

	assert.ErrorIs(t, err, domain.ErrRetrieval)
	var re *domain.RetrievalError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "missing.html", re.Locator)
}

func TestLoad_FiresReady(t *testing.T) {
	bus := dom.NewBus()
	rt := script.New(script.WithDispatcher(bus))
	loader := component.NewLoader(newCounting(map[string]string{
		"r.html": `<div></div><script>root.addEventListener("ready", (e) => { root.textContent = "ready:" + e.detail.n })</script>`,
	}), rt, component.WithDispatcher(bus))

	inst, err := loader.Load(context.Background(), "r.html", map[string]any{"n": 1})

	require.NoError(t, err)
	assert.Equal(t, "ready:1", dom.Text(inst.Root))
}

func TestLoad_PendingScriptStillReady(t *testing.T) {
	bus := dom.NewBus()
	rt := script.New(script.WithDispatcher(bus))
	loader := component.NewLoader(newCounting(map[string]string{
		"p.html": `<div></div><script>root.textContent = "before"; await new Promise(() => {}); root.textContent = "after";</script>`,
	}), rt, component.WithDispatcher(bus))

	inst, err := loader.Load(context.Background(), "p.html", nil)
	require.NoError(t, err)

	select {
	case <-inst.Ready():
	default:
		t.Fatal("ready did not fire")
	}
	assert.Equal(t, "before", dom.Text(inst.Root), "work after the pending await is dropped")
}

func TestLoadHTML_AppendsSuffix(t *testing.T) {
	fetcher := newCounting(map[string]string{"pages/home.html": `<section id="home"></section>`})
	loader := component.NewLoader(fetcher, script.New())

	root, err := loader.LoadHTML(context.Background(), "pages/home", nil)

	require.NoError(t, err)
	id, _ := dom.Attr(root, "id")
	assert.Equal(t, "home", id)
	assert.Equal(t, "x.html", component.HTMLLocator("x.html"))
}

func TestChain_FallsBack(t *testing.T) {
	network := memory.NewFetcher(nil)
	bundled := memory.NewFetcher(map[string]string{"a.html": "<b></b>"})

	body, err := component.Chain{network, bundled}.Fetch(context.Background(), "a.html")
	require.NoError(t, err)
	assert.Equal(t, "<b></b>", string(body))

	_, err = component.Chain{network, bundled}.Fetch(context.Background(), "zzz")
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

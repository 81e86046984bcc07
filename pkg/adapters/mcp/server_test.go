package mcp_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	mcpadapter "github.com/aretw0/arbor/pkg/adapters/mcp"
	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

type fakeApp struct {
	doc       *html.Node
	ctx       domain.Context
	route     domain.RouteState
	triggered []string
}

func newFakeApp(t *testing.T) *fakeApp {
	t.Helper()
	nodes, err := dom.ParseFragment(`<main><button id="go">go</button></main>`)
	require.NoError(t, err)
	return &fakeApp{
		doc: dom.FirstElement(nodes),
		ctx: domain.Context{"greeting": "hi", "shout": func(s string) string { return s }},
	}
}

func (a *fakeApp) RenderPage(ctx context.Context, w io.Writer, fragment string) error {
	if _, err := a.Navigate(ctx, fragment); err != nil {
		return err
	}
	return a.Render(w)
}

func (a *fakeApp) Render(w io.Writer) error { return dom.Render(w, a.doc) }

func (a *fakeApp) Navigate(ctx context.Context, fragment string) (domain.Outcome, error) {
	page, ok := domain.ParseFragment(fragment)
	if !ok {
		return domain.OutcomeIgnored, nil
	}
	a.route = domain.RouteState{Page: page, Previous: a.route.Page}
	return domain.OutcomeNavigated, nil
}

func (a *fakeApp) Route() domain.RouteState { return a.route }

func (a *fakeApp) SetContext(ctx context.Context, patch domain.Context) error {
	a.ctx = domain.Merge(a.ctx, patch)
	return nil
}

func (a *fakeApp) Context(ctx context.Context) domain.Context { return a.ctx }

func (a *fakeApp) Query(selector string) (*html.Node, error) { return dom.Query(a.doc, selector) }

func (a *fakeApp) Trigger(ctx context.Context, node *html.Node, name string, detail any) (*domain.Signal, error) {
	a.triggered = append(a.triggered, name)
	sig := domain.NewSignal(name, detail)
	if name == domain.SignalSubmit {
		sig.PreventDefault()
	}
	a.ctx = domain.Merge(a.ctx, domain.Context{"last": name})
	return sig, nil
}

type toolResult struct {
	IsError           bool            `json:"isError"`
	StructuredContent json.RawMessage `json:"structuredContent"`
	Content           []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func rpc(t *testing.T, s *mcpadapter.Server, method string, params any) json.RawMessage {
	t.Helper()
	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), req)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope))
	require.Nil(t, envelope.Error, "rpc %s failed", method)
	return envelope.Result
}

func callTool(t *testing.T, s *mcpadapter.Server, name string, args map[string]any, out any) toolResult {
	t.Helper()
	var res toolResult
	raw := rpc(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	require.NoError(t, json.Unmarshal(raw, &res))
	if out != nil && !res.IsError {
		payload := res.StructuredContent
		if len(payload) == 0 && len(res.Content) > 0 {
			payload = json.RawMessage(res.Content[0].Text)
		}
		require.NoError(t, json.Unmarshal(payload, out))
	}
	return res
}

func TestServer_ListTools(t *testing.T) {
	s := mcpadapter.NewServer(newFakeApp(t))

	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rpc(t, s, "tools/list", map[string]any{}), &list))

	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"render_page", "navigate", "set_context", "send_signal"}, names)
}

func TestServer_RenderPage(t *testing.T) {
	app := newFakeApp(t)
	s := mcpadapter.NewServer(app)

	var page mcpadapter.PageResponse
	res := callTool(t, s, "render_page", map[string]any{"fragment": "#page=about"}, &page)
	require.False(t, res.IsError)

	assert.Equal(t, "about", page.Route.Page)
	assert.Contains(t, page.Document, `<button id="go">go</button>`)
	assert.Equal(t, "hi", page.Context["greeting"])
	assert.NotContains(t, page.Context, "shout", "handlers are not encoded")
}

func TestServer_RenderCurrentPage(t *testing.T) {
	app := newFakeApp(t)
	app.route = domain.RouteState{Page: "home"}
	s := mcpadapter.NewServer(app)

	var page mcpadapter.PageResponse
	res := callTool(t, s, "render_page", map[string]any{}, &page)
	require.False(t, res.IsError)

	assert.Equal(t, "home", page.Route.Page)
	assert.Contains(t, page.Document, "<main>")
}

func TestServer_Navigate(t *testing.T) {
	app := newFakeApp(t)
	s := mcpadapter.NewServer(app)

	var page mcpadapter.PageResponse
	callTool(t, s, "navigate", map[string]any{"fragment": "#page=one"}, &page)
	callTool(t, s, "navigate", map[string]any{"fragment": "#page=two"}, &page)

	assert.Equal(t, domain.OutcomeNavigated, page.Outcome)
	assert.Equal(t, domain.RouteState{Page: "two", Previous: "one"}, page.Route)

	callTool(t, s, "navigate", map[string]any{"fragment": "#top"}, &page)
	assert.Equal(t, domain.OutcomeIgnored, page.Outcome)
	assert.Equal(t, "two", page.Route.Page)
}

func TestServer_SetContext(t *testing.T) {
	app := newFakeApp(t)
	s := mcpadapter.NewServer(app)

	var page mcpadapter.PageResponse
	res := callTool(t, s, "set_context", map[string]any{"context": `{"name":"ada"}`}, &page)
	require.False(t, res.IsError)

	assert.Equal(t, "ada", page.Context["name"])
	assert.Equal(t, "ada", app.ctx["name"])

	res = callTool(t, s, "set_context", map[string]any{"context": `[1,2]`}, nil)
	assert.True(t, res.IsError)
}

func TestServer_SendSignal(t *testing.T) {
	app := newFakeApp(t)
	s := mcpadapter.NewServer(app)

	var out mcpadapter.SignalResponse
	res := callTool(t, s, "send_signal", map[string]any{"selector": "#go", "signal": "submit"}, &out)
	require.False(t, res.IsError)

	assert.Equal(t, "submit", out.Signal)
	assert.True(t, out.DefaultPrevented)
	assert.Equal(t, "submit", out.Context["last"])
	assert.Equal(t, []string{"submit"}, app.triggered)
}

func TestServer_SendSignal_NoMatch(t *testing.T) {
	app := newFakeApp(t)
	s := mcpadapter.NewServer(app)

	res := callTool(t, s, "send_signal", map[string]any{"selector": "#missing", "signal": "click"}, nil)
	assert.True(t, res.IsError)
	assert.Empty(t, app.triggered)
}

func TestServer_ContextResource(t *testing.T) {
	s := mcpadapter.NewServer(newFakeApp(t))

	var read struct {
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(rpc(t, s, "resources/read", map[string]any{"uri": mcpadapter.ContextURI}), &read))
	require.Len(t, read.Contents, 1)

	var ctx map[string]any
	require.NoError(t, json.Unmarshal([]byte(read.Contents[0].Text), &ctx))
	assert.Equal(t, map[string]any{"greeting": "hi"}, ctx)
}

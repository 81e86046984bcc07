package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	arborhttp "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApp struct {
	ctx       domain.Context
	rendered  []string
	navigated []string
	renderErr error
}

func (a *fakeApp) RenderPage(ctx context.Context, w io.Writer, fragment string) error {
	if a.renderErr != nil {
		return a.renderErr
	}
	a.rendered = append(a.rendered, fragment)
	_, err := io.WriteString(w, "<main>"+fragment+"</main>")
	return err
}

func (a *fakeApp) Navigate(ctx context.Context, fragment string) (domain.Outcome, error) {
	a.navigated = append(a.navigated, fragment)
	return domain.OutcomeNavigated, nil
}

func (a *fakeApp) SetContext(ctx context.Context, patch domain.Context) error {
	a.ctx = domain.Merge(a.ctx, patch)
	return nil
}

func (a *fakeApp) Context(ctx context.Context) domain.Context { return a.ctx }

func TestServer_Pages(t *testing.T) {
	app := &fakeApp{}
	srv := httptest.NewServer(arborhttp.NewServer(app).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pages/about")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "<main>page=about</main>", string(body))
	assert.Equal(t, []string{"page=about"}, app.rendered)
}

func TestServer_PageNotFound(t *testing.T) {
	app := &fakeApp{renderErr: &domain.RetrievalError{Locator: "x.html", Err: io.EOF}}
	srv := httptest.NewServer(arborhttp.NewServer(app).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pages/x")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ContextAPI(t *testing.T) {
	app := &fakeApp{ctx: domain.Context{"handler": func() {}, "page": "home"}}
	srv := httptest.NewServer(arborhttp.NewServer(app).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/context", "application/json", strings.NewReader(`{"count": 2}`))
	require.NoError(t, err)
	var envelope map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()

	assert.Equal(t, map[string]any{"page": "home", "count": float64(2)}, envelope["result"])
}

func TestServer_ComponentsAndInfo(t *testing.T) {
	components := fstest.MapFS{"card.html": {Data: []byte("<article></article>")}}
	srv := httptest.NewServer(arborhttp.NewServer(&fakeApp{},
		arborhttp.WithComponents(components), arborhttp.WithVersion("1.2.3\n")).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/components/card.html")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "<article></article>", string(body))

	resp, err = http.Get(srv.URL + "/info")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.Equal(t, "1.2.3", info["version"])
}

func TestServer_EventStream(t *testing.T) {
	app := &fakeApp{}
	server := arborhttp.NewServer(app)
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?watch=navigation", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)
	_, _ = reader.ReadString('\n')
	_, _ = reader.ReadString('\n')

	hooks := server.Hooks()
	hooks.OnPassComplete(ctx, &domain.PassEvent{Dispatched: 1})
	hooks.OnNavigate(ctx, &domain.NavigationEvent{From: "home", To: "about", Outcome: domain.OutcomeNavigated})

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: navigation\n", line, "context events are filtered out")
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"to":"about"`)
}

func TestServer_Navigate(t *testing.T) {
	app := &fakeApp{}
	srv := httptest.NewServer(arborhttp.NewServer(app).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/navigate", "application/json", strings.NewReader(`{"fragment":"page=about"}`))
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()

	assert.Equal(t, "navigated", out["outcome"])
	assert.Equal(t, []string{"page=about"}, app.navigated)
}

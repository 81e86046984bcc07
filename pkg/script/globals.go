package script

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

var errNoFetcher = errors.New("no fetcher configured")

func (r *Runtime) installGlobals() {
	vm := r.vm
	doc := func() *html.Node { return r.document }

	set := func(name string, v any) {
		if err := vm.Set(name, v); err != nil {
			panic(err)
		}
	}

	set("select", r.selectFrom(doc))
	set("selectAll", r.selectAllFrom(doc))
	set("selectRef", r.selectRefFrom(doc))
	set("selectId", r.selectIDFrom(doc))
	set("refs", func() goja.Value { return r.toValue(dom.Refs(r.root())) })
	set("ids", func() goja.Value { return r.toValue(dom.IDs(r.root())) })
	set("clear", func(v goja.Value) { dom.Clear(r.node(v)) })
	set("mount", func(container, node goja.Value) {
		dom.Mount(r.dispatcher(), r.node(container), r.node(node))
	})
	set("unmount", func(container, node goja.Value) {
		dom.Unmount(r.dispatcher(), r.node(container), r.node(node))
	})

	set("get", r.get)
	set("post", r.post)
	set("api", r.api)

	set("setContext", func(patch map[string]any) {
		if r.host != nil {
			r.host.SetContext(domain.Context(patch))
		}
	})
	set("getContext", func() goja.Value {
		if r.host == nil {
			return r.vm.NewObject()
		}
		return r.toValue(r.host.Context())
	})
	set("loadComponent", func(locator string, protocol goja.Value) goja.Value {
		return r.load(locator, protocol)
	})
	set("loadHTML", func(locator string, protocol goja.Value) goja.Value {
		if !strings.HasSuffix(locator, ".html") {
			locator += ".html"
		}
		return r.load(locator, protocol)
	})

	console := vm.NewObject()
	logAt := func(level func(string, ...any)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			level(strings.Join(parts, " "), "source", "script")
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logAt(r.logger.Info))
	_ = console.Set("info", logAt(r.logger.Info))
	_ = console.Set("debug", logAt(r.logger.Debug))
	_ = console.Set("warn", logAt(r.logger.Warn))
	_ = console.Set("error", logAt(r.logger.Error))
	set("console", console)
}

func (r *Runtime) root() *html.Node {
	if r.document == nil {
		panic(r.vm.NewTypeError("no document attached"))
	}
	return r.document
}

func (r *Runtime) dispatcher() ports.Dispatcher {
	if r.bus != nil {
		return r.bus
	}
	return dom.NewBus()
}

func (r *Runtime) selectFrom(scope func() *html.Node) func(string) goja.Value {
	return func(selector string) goja.Value {
		n, err := dom.Query(r.scoped(scope), selector)
		if err != nil {
			panic(r.vm.NewGoError(err))
		}
		return r.wrap(n)
	}
}

func (r *Runtime) selectAllFrom(scope func() *html.Node) func(string) goja.Value {
	return func(selector string) goja.Value {
		ns, err := dom.QueryAll(r.scoped(scope), selector)
		if err != nil {
			panic(r.vm.NewGoError(err))
		}
		return r.wrapAll(ns)
	}
}

func (r *Runtime) selectRefFrom(scope func() *html.Node) func(string) goja.Value {
	return func(name string) goja.Value {
		return r.wrap(dom.Refs(r.scoped(scope))[name])
	}
}

func (r *Runtime) selectIDFrom(scope func() *html.Node) func(string) goja.Value {
	return func(id string) goja.Value {
		return r.wrap(dom.IDs(r.scoped(scope))[id])
	}
}

func (r *Runtime) scoped(scope func() *html.Node) *html.Node {
	n := scope()
	if n == nil {
		panic(r.vm.NewTypeError("no document attached"))
	}
	return n
}

func (r *Runtime) load(locator string, protocol goja.Value) goja.Value {
	if r.host == nil {
		panic(r.vm.NewTypeError("component loading is not available"))
	}
	n, err := r.host.LoadComponent(locator, r.export(protocol))
	if err != nil {
		panic(r.vm.NewGoError(err))
	}
	return r.wrap(n)
}

// get retrieves url with params appended as a query string.
func (r *Runtime) get(locator string, params map[string]any) string {
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, dom.String(v))
		}
		sep := "?"
		if strings.Contains(locator, "?") {
			sep = "&"
		}
		locator += sep + q.Encode()
	}
	if r.fetcher == nil {
		panic(r.vm.NewGoError(errNoFetcher))
	}
	body, err := r.fetcher.Fetch(context.Background(), locator)
	if err != nil {
		panic(r.vm.NewGoError(err))
	}
	return string(body)
}

// post sends body as JSON and decodes the JSON response.
func (r *Runtime) post(locator string, body goja.Value) goja.Value {
	if r.fetcher == nil {
		panic(r.vm.NewGoError(errNoFetcher))
	}
	payload, err := json.Marshal(r.export(body))
	if err != nil {
		panic(r.vm.NewGoError(err))
	}
	raw, err := r.fetcher.Post(context.Background(), locator, payload)
	if err != nil {
		panic(r.vm.NewGoError(err))
	}
	if len(raw) == 0 {
		return goja.Undefined()
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return r.vm.ToValue(string(raw))
	}
	return r.vm.ToValue(out)
}

// api posts protocol to <base>/<path> and unwraps the {error, result} envelope.
func (r *Runtime) api(path string, protocol goja.Value) goja.Value {
	locator := path
	if !strings.Contains(path, "://") {
		locator = strings.TrimSuffix(r.apiBase, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	res := r.post(locator, protocol)
	obj, ok := res.(*goja.Object)
	if !ok {
		return res
	}
	if e := obj.Get("error"); e != nil && !goja.IsUndefined(e) && !goja.IsNull(e) {
		panic(r.vm.NewGoError(errors.New(e.String())))
	}
	if v := obj.Get("result"); v != nil {
		return v
	}
	return goja.Undefined()
}

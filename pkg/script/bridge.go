package script

import (
	"strconv"
	"strings"

	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// Writable node properties, routed through dom.SetProperty.
var properties = []string{
	"textContent", "innerText", "innerHTML", "className", "id", "value",
	"hidden", "checked", "disabled", "selected", "src", "href", "title",
	"name", "type", "placeholder",
}

func (r *Runtime) toValue(v any) goja.Value {
	switch t := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return t
	case *html.Node:
		return r.wrap(t)
	case []*html.Node:
		return r.wrapAll(t)
	case map[string]*html.Node:
		obj := r.vm.NewObject()
		for k, n := range t {
			_ = obj.Set(k, r.wrap(n))
		}
		return obj
	case *domain.Signal:
		return r.signal(nil, t)
	case domain.Context:
		obj := r.vm.NewObject()
		for k, e := range t {
			_ = obj.Set(k, r.toValue(e))
		}
		return obj
	}
	return r.vm.ToValue(v)
}

func (r *Runtime) export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.Export()
	}
	if n, ok := r.nodes[obj]; ok {
		return n
	}
	if obj.ClassName() == "Array" {
		length := int(obj.Get("length").ToInteger())
		out := make([]any, length)
		for i := range length {
			out[i] = r.export(obj.Get(strconv.Itoa(i)))
		}
		return out
	}
	return obj.Export()
}

func (r *Runtime) wrapAll(nodes []*html.Node) goja.Value {
	vals := make([]any, len(nodes))
	for i, n := range nodes {
		vals[i] = r.wrap(n)
	}
	return r.vm.NewArray(vals...)
}

// wrap returns the one wrapper object of n.
func (r *Runtime) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := r.wrappers[n]; ok {
		return obj
	}
	vm := r.vm
	obj := vm.NewObject()
	r.wrappers[n] = obj
	r.nodes[obj] = n

	for _, p := range properties {
		prop := p
		_ = obj.DefineAccessorProperty(prop,
			vm.ToValue(func() goja.Value { return vm.ToValue(dom.Property(n, prop)) }),
			vm.ToValue(func(v goja.Value) {
				if err := dom.SetProperty(n, prop, r.export(v)); err != nil {
					panic(vm.NewGoError(err))
				}
			}),
			goja.FLAG_FALSE, goja.FLAG_TRUE)
	}

	getter := func(name string, fn func() goja.Value) {
		_ = obj.DefineAccessorProperty(name, vm.ToValue(fn), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	getter("tagName", func() goja.Value { return vm.ToValue(strings.ToUpper(n.Data)) })
	getter("outerHTML", func() goja.Value { return vm.ToValue(dom.OuterHTML(n)) })
	getter("parentNode", func() goja.Value { return r.wrap(n.Parent) })
	getter("parentElement", func() goja.Value { return r.wrap(n.Parent) })
	getter("children", func() goja.Value {
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				kids = append(kids, c)
			}
		}
		return r.wrapAll(kids)
	})
	getter("dataset", func() goja.Value {
		data := vm.NewObject()
		for _, a := range n.Attr {
			if rest, ok := strings.CutPrefix(a.Key, "data-"); ok {
				_ = data.Set(dataKey(rest), a.Val)
			}
		}
		return data
	})
	getter("classList", func() goja.Value { return r.classList(n) })

	_ = obj.Set("getAttribute", func(name string) goja.Value {
		if v, ok := dom.Attr(n, name); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("setAttribute", func(name string, v goja.Value) { dom.SetAttr(n, name, v.String()) })
	_ = obj.Set("removeAttribute", func(name string) { dom.RemoveAttr(n, name) })
	_ = obj.Set("hasAttribute", func(name string) bool { return dom.HasAttr(n, name) })
	_ = obj.Set("querySelector", r.selectFrom(func() *html.Node { return n }))
	_ = obj.Set("querySelectorAll", r.selectAllFrom(func() *html.Node { return n }))
	_ = obj.Set("appendChild", func(child goja.Value) goja.Value {
		c := r.node(child)
		dom.Detach(c)
		n.AppendChild(c)
		return child
	})
	_ = obj.Set("removeChild", func(child goja.Value) goja.Value {
		if c := r.node(child); c.Parent == n {
			n.RemoveChild(c)
		}
		return child
	})
	_ = obj.Set("remove", func() { dom.Detach(n) })
	_ = obj.Set("cloneNode", func() goja.Value { return r.wrap(dom.Clone(n)) })
	_ = obj.Set("addEventListener", func(name string, fn goja.Callable) goja.Value {
		if r.bus == nil {
			return goja.Undefined()
		}
		off := r.bus.On(n, name, func(sig *domain.Signal) {
			if _, err := fn(obj, r.signal(n, sig)); err != nil {
				r.logger.Warn("Event listener failed", "event", name, "err", err)
			}
		})
		return vm.ToValue(off)
	})
	_ = obj.Set("dispatchEvent", func(ev goja.Value) bool {
		sig := r.toSignal(ev)
		if r.bus != nil {
			r.bus.Emit(n, sig)
		}
		return !sig.DefaultPrevented()
	})
	return obj
}

// node resolves a wrapper back to its host node or throws.
func (r *Runtime) node(v goja.Value) *html.Node {
	if obj, ok := v.(*goja.Object); ok {
		if n, ok := r.nodes[obj]; ok {
			return n
		}
	}
	panic(r.vm.NewTypeError("argument is not a node"))
}

func (r *Runtime) signal(target *html.Node, sig *domain.Signal) goja.Value {
	vm := r.vm
	obj := vm.NewObject()
	_ = obj.Set("type", sig.Name)
	_ = obj.Set("detail", r.toValue(sig.Detail))
	_ = obj.Set("target", r.wrap(target))
	_ = obj.Set("preventDefault", func() { sig.PreventDefault() })
	_ = obj.Set("cancel", func() { sig.Cancel() })
	_ = obj.DefineAccessorProperty("defaultPrevented",
		vm.ToValue(func() bool { return sig.DefaultPrevented() }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return obj
}

// toSignal accepts "name" or {type, detail}.
func (r *Runtime) toSignal(v goja.Value) *domain.Signal {
	if obj, ok := v.(*goja.Object); ok {
		return domain.NewSignal(obj.Get("type").String(), r.export(obj.Get("detail")))
	}
	return domain.NewSignal(v.String(), nil)
}

func (r *Runtime) classList(n *html.Node) goja.Value {
	vm := r.vm
	classes := func() []string {
		v, _ := dom.Attr(n, "class")
		return strings.Fields(v)
	}
	set := func(cs []string) { dom.SetAttr(n, "class", strings.Join(cs, " ")) }
	has := func(c string) bool {
		for _, x := range classes() {
			if x == c {
				return true
			}
		}
		return false
	}
	remove := func(c string) {
		var kept []string
		for _, x := range classes() {
			if x != c {
				kept = append(kept, x)
			}
		}
		set(kept)
	}

	obj := vm.NewObject()
	_ = obj.Set("contains", has)
	_ = obj.Set("add", func(call goja.FunctionCall) goja.Value {
		for _, a := range call.Arguments {
			if c := a.String(); !has(c) {
				set(append(classes(), c))
			}
		}
		return goja.Undefined()
	})
	_ = obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		for _, a := range call.Arguments {
			remove(a.String())
		}
		return goja.Undefined()
	})
	_ = obj.Set("toggle", func(c string) bool {
		if has(c) {
			remove(c)
			return false
		}
		set(append(classes(), c))
		return true
	})
	return obj
}

func dataKey(s string) string {
	parts := strings.Split(s, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

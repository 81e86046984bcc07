package runtime

import (
	"context"
	"strings"

	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"golang.org/x/net/html"
)

// process runs the directive processor on one node: events are bound
// synchronously, then each property binding is dispatched in attribute order.
func (e *Engine) process(p *pass, n *html.Node, ctx domain.Context) {
	e.bindEvents(n, ctx)

	for _, a := range n.Attr {
		b, ok := domain.ParseBinding(a.Key, a.Val)
		if !ok || (b.Kind != domain.BindingOwnProperty && b.Kind != domain.BindingParentProperty) {
			continue
		}
		target := n
		if b.Kind == domain.BindingParentProperty {
			target = n.Parent
		}
		if target == nil {
			e.logger.Warn("Property binding has no target", "binding", b.Attr)
			continue
		}
		e.project(p, n, target, b, ctx)
	}
}

// bindEvents moves event attributes into the side table and (re)attaches a
// listener per remembered binding, detaching the previous one.
func (e *Engine) bindEvents(n *html.Node, ctx domain.Context) {
	m := e.metaOf(n)

	var parsed []string
	for _, a := range n.Attr {
		b, ok := domain.ParseBinding(a.Key, a.Val)
		if !ok || b.Kind != domain.BindingEvent {
			continue
		}
		parsed = append(parsed, a.Key)
		replaced := false
		for i := range m.events {
			if m.events[i].Key == b.Key {
				m.events[i] = b
				replaced = true
			}
		}
		if !replaced {
			m.events = append(m.events, b)
		}
	}
	for _, name := range parsed {
		dom.RemoveAttr(n, name)
	}

	for _, b := range m.events {
		if off, ok := m.off[b.Key]; ok {
			off()
		}
		if m.off == nil {
			m.off = make(map[string]func())
		}
		m.off[b.Key] = e.bus.On(n, b.Key, e.listener(n, b, ctx))
	}
}

// listener builds the handler of an event binding. It runs on the loop.
func (e *Engine) listener(n *html.Node, b domain.Binding, ctx domain.Context) ports.Listener {
	return func(sig *domain.Signal) {
		form := dom.ClosestForm(n)
		scope := ctx.With(domain.Context{
			"node":   n,
			"parent": n.Parent,
			"event":  sig,
			"cancel": sig.Cancel,
			"formReset": func() {
				if form != nil {
					dom.ResetForm(form)
					e.Defer(domain.Context(dom.FormData(form)))
				}
			},
		})

		if b.Form {
			sig.PreventDefault()
			if form == nil {
				e.logger.Warn("Form binding outside a form", "binding", b.Attr)
				return
			}
			scope["formData"] = dom.FormData(form)
		}
		if sig.Cancelled() {
			return
		}
		if _, err := e.eval.Evaluate(b.Expr, scope); err != nil {
			e.evaluationFailed(context.Background(), b.Attr, b.Expr, err)
		}
	}
}

// project dispatches one property binding and assigns its result to target.
func (e *Engine) project(p *pass, n, target *html.Node, b domain.Binding, ctx domain.Context) {
	baseline := ""
	if b.Key == "className" {
		tm := e.metaOf(target)
		if !tm.hasBaseline {
			tm.baseline, _ = dom.Attr(target, "class")
			tm.hasBaseline = true
		}
		baseline = tm.baseline
	}
	scope := ctx.With(domain.Context{"node": n, "parent": n.Parent})

	p.spawn(func() {
		e.loop.Do(func() {
			if !p.live() {
				return
			}
			v, err := e.eval.Evaluate(b.Expr, scope)
			if err != nil {
				e.evaluationFailed(p.ctx, b.Attr, b.Expr, err)
				return
			}
			if b.Key == "className" {
				cls := ""
				if domain.Truthy(v) {
					cls = dom.String(v)
				}
				v = strings.TrimSpace(baseline + " " + cls)
			}
			if err := dom.SetProperty(target, b.Key, v); err != nil {
				e.evaluationFailed(p.ctx, b.Attr, b.Expr, err)
			}
		})
	})
}

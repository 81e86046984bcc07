package runtime

import (
	"context"
	"time"

	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"golang.org/x/net/html"
)

// renderPass applies directives over root and its descendants. It runs on
// the loop and returns once every evaluation has been dispatched.
func (e *Engine) renderPass(p *pass, root *html.Node, patch domain.Context) {
	m := e.metaOf(root)
	if m.processed {
		return
	}
	ctx := domain.Merge(p.base, patch)

	e.purge(root)
	e.markProcessed(root, false)

	m.processed = true
	e.process(p, root, ctx)

	for _, n := range dom.Elements(root) {
		nm := e.metaOf(n)
		if nm.processed {
			continue
		}
		nm.processed = true

		switch {
		case dom.HasAttr(n, domain.AttrFor):
			e.repeat(p, n, ctx)
		case dom.HasAttr(n, domain.AttrIf):
			e.conditional(p, n, ctx)
		default:
			e.process(p, n, ctx)
		}
	}
}

// conditional hides n and reveals and renders it once its condition holds.
func (e *Engine) conditional(p *pass, n *html.Node, ctx domain.Context) {
	expr, _ := dom.Attr(n, domain.AttrIf)
	e.markProcessed(n, true)
	dom.Hide(n)

	p.spawn(func() {
		e.loop.Do(func() {
			if !p.live() {
				return
			}
			v, err := e.eval.Evaluate(expr, ctx)
			if err != nil {
				e.evaluationFailed(p.ctx, domain.AttrIf, expr, err)
				return
			}
			if !domain.Truthy(v) {
				return
			}
			dom.Show(n)
			e.metaOf(n).processed = false
			e.markProcessed(n, false)
			e.renderPass(p, n, ctx)
		})
	})
}

// repeat hides the template n and inserts one rendered clone per item after it.
func (e *Engine) repeat(p *pass, n *html.Node, ctx domain.Context) {
	expr, _ := dom.Attr(n, domain.AttrFor)
	alias := domain.DefaultEachAlias
	if each, ok := dom.Attr(n, domain.AttrEach); ok && each != "" {
		alias = each
	}
	e.markProcessed(n, true)
	dom.Hide(n)

	p.spawn(func() {
		e.loop.Do(func() {
			if !p.live() || n.Parent == nil {
				return
			}
			v, err := e.eval.Evaluate(expr, ctx)
			if err != nil {
				e.evaluationFailed(p.ctx, domain.AttrFor, expr, err)
				return
			}

			last := n
			for i, item := range domain.Sequence(v) {
				clone := dom.Clone(n)
				dom.RemoveAttr(clone, domain.AttrFor)
				dom.RemoveAttr(clone, domain.AttrEach)
				dom.Show(clone)
				if err := dom.InsertAfter(last, clone); err != nil {
					e.logger.Warn("Repeat insertion failed", "expr", expr, "err", err)
					return
				}
				last = clone
				e.metaOf(clone).generated = true

				itemCtx := ctx.With(domain.Context{alias: item, "item": item, "index": i})
				if dom.HasAttr(clone, domain.AttrIf) {
					e.conditional(p, clone, itemCtx)
					continue
				}
				e.renderPass(p, clone, itemCtx)
			}
		})
	})
}

func (e *Engine) evaluationFailed(ctx context.Context, binding, expr string, err error) {
	e.logger.Warn("Directive evaluation failed", "binding", binding, "expr", expr, "err", err)
	if e.hooks.OnEvaluationError != nil {
		e.hooks.OnEvaluationError(ctx, &domain.EvaluationEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventEvaluationError},
			Binding:   binding,
			Expr:      expr,
			Err:       err,
		})
	}
}

package runtime

import (
	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"golang.org/x/net/html"
)

// nodeMeta is the render side table entry of one node.
type nodeMeta struct {
	processed bool
	generated bool

	// baseline is the class attribute captured before the first class binding.
	baseline    string
	hasBaseline bool

	// events are the event bindings parsed off the node; off detaches the
	// current listener per normalized event name.
	events []domain.Binding
	off    map[string]func()
}

func (e *Engine) metaOf(n *html.Node) *nodeMeta {
	m, ok := e.meta[n]
	if !ok {
		m = &nodeMeta{}
		e.meta[n] = m
	}
	return m
}

func (e *Engine) markProcessed(root *html.Node, processed bool) {
	for _, n := range dom.Elements(root) {
		e.metaOf(n).processed = processed
	}
}

// forget drops side table entries and listeners of root and its descendants.
func (e *Engine) forget(root *html.Node) {
	dom.Walk(root, func(n *html.Node) {
		if m, ok := e.meta[n]; ok {
			for _, off := range m.off {
				off()
			}
			delete(e.meta, n)
		}
		e.bus.Forget(n)
	})
	if e.release != nil {
		e.release(root)
	}
}

// purge removes the repeat clones generated under root by earlier passes.
func (e *Engine) purge(root *html.Node) {
	var stale []*html.Node
	for _, n := range dom.Elements(root) {
		if m, ok := e.meta[n]; ok && m.generated {
			stale = append(stale, n)
		}
	}
	for _, n := range stale {
		if n.Parent == nil {
			continue
		}
		dom.Detach(n)
		e.forget(n)
	}
}

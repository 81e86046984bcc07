package ports

import (
	"golang.org/x/net/html"

	"github.com/aretw0/arbor/pkg/domain"
)

// Listener receives a signal fired on the node it was attached to.
type Listener func(*domain.Signal)

// Dispatcher is the generic event bus of the host tree.
type Dispatcher interface {
	// On attaches fn to the named signal of target and returns a function that detaches it.
	On(target *html.Node, name string, fn Listener) (off func())

	// Emit delivers sig synchronously to the listeners attached to target, in attach order.
	Emit(target *html.Node, sig *domain.Signal)

	// Forget detaches every listener of target.
	Forget(target *html.Node)
}

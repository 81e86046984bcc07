package dom

import (
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"golang.org/x/net/html"
)

type listener struct {
	id uint64
	fn ports.Listener
}

// Bus implements ports.Dispatcher. Signals do not bubble: they are delivered
// to the listeners of the target node only.
type Bus struct {
	mu        sync.Mutex
	next      uint64
	listeners map[*html.Node]map[string][]listener
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[*html.Node]map[string][]listener)}
}

// On attaches fn and returns its detach function. Calling it twice is harmless.
func (b *Bus) On(target *html.Node, name string, fn ports.Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	byName, ok := b.listeners[target]
	if !ok {
		byName = make(map[string][]listener)
		b.listeners[target] = byName
	}
	byName[name] = append(byName[name], listener{id: id, fn: fn})

	return func() { b.off(target, name, id) }
}

func (b *Bus) off(target *html.Node, name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	byName := b.listeners[target]
	ls := byName[name]
	for i, l := range ls {
		if l.id == id {
			byName[name] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(byName[name]) == 0 {
		delete(byName, name)
	}
	if len(byName) == 0 {
		delete(b.listeners, target)
	}
}

// Emit delivers sig to a snapshot of the listeners attached to target.
func (b *Bus) Emit(target *html.Node, sig *domain.Signal) {
	b.mu.Lock()
	ls := append([]listener(nil), b.listeners[target][sig.Name]...)
	b.mu.Unlock()

	for _, l := range ls {
		l.fn(sig)
	}
}

// Forget detaches every listener of target.
func (b *Bus) Forget(target *html.Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, target)
}

// Count returns how many listeners target has for name.
func (b *Bus) Count(target *html.Node, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[target][name])
}

// Mount appends node to container and fires mounted on it.
func Mount(bus ports.Dispatcher, container, node *html.Node) {
	Detach(node)
	container.AppendChild(node)
	bus.Emit(node, domain.NewSignal(domain.SignalMounted, nil))
}

// Unmount removes node from container and fires unmounted on it.
func Unmount(bus ports.Dispatcher, container, node *html.Node) {
	if node.Parent == container {
		container.RemoveChild(node)
	}
	bus.Emit(node, domain.NewSignal(domain.SignalUnmounted, nil))
}

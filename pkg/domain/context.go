package domain

// Context is the ambient name/value mapping read by directive expressions.
// Values are primitives, records, sequences or registered handler callables.
type Context map[string]any

// Merge overlays the layers left to right. Later layers win on key collision.
// The result is a fresh map; the inputs are never mutated.
func Merge(layers ...Context) Context {
	size := 0
	for _, l := range layers {
		size += len(l)
	}
	out := make(Context, size)
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// Clone returns a shallow copy.
func (c Context) Clone() Context {
	return Merge(c)
}

// With returns a copy of c extended with the given entries.
func (c Context) With(entries Context) Context {
	return Merge(c, entries)
}

package domain

// Signal is a named event delivered through the event bus.
type Signal struct {
	Name   string
	Detail any

	prevented bool
	cancelled bool
}

// NewSignal creates a signal carrying an optional detail payload.
func NewSignal(name string, detail any) *Signal {
	return &Signal{Name: name, Detail: detail}
}

// PreventDefault suppresses the host's default handling of the signal.
func (s *Signal) PreventDefault() { s.prevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (s *Signal) DefaultPrevented() bool { return s.prevented }

// Cancel marks the invocation cancelled. Handlers that have not run yet skip
// their expression.
func (s *Signal) Cancel() { s.cancelled = true }

// Cancelled reports whether Cancel was called.
func (s *Signal) Cancelled() bool { return s.cancelled }

package domain

import (
	"context"
	"time"
)

// Signals fired on host nodes.
const (
	SignalReady      = "ready"
	SignalMounted    = "mounted"
	SignalUnmounted  = "unmounted"
	SignalPageCancel = "page-cancel"
	SignalSubmit     = "submit"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventPassStart       EventType = "pass_start"
	EventPassComplete    EventType = "pass_complete"
	EventEvaluationError EventType = "evaluation_error"
	EventComponentLoad   EventType = "component_load"
	EventNavigate        EventType = "navigate"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// PassEvent describes one SetContext render pass.
type PassEvent struct {
	EventBase
	Keys       []string      `json:"keys,omitempty"`
	Dispatched int           `json:"dispatched"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// EvaluationEvent describes a directive expression that failed.
type EvaluationEvent struct {
	EventBase
	Binding string `json:"binding"`
	Expr    string `json:"expr"`
	Err     error  `json:"-"`
}

// ComponentEvent describes a component load.
type ComponentEvent struct {
	EventBase
	Locator  string        `json:"locator"`
	Cached   bool          `json:"cached"`
	Scripts  int           `json:"scripts"`
	Failures int           `json:"failures,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// NavigationEvent describes one router transition.
type NavigationEvent struct {
	EventBase
	From     string        `json:"from"`
	To       string        `json:"to"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnPassStart       func(context.Context, *PassEvent)
	OnPassComplete    func(context.Context, *PassEvent)
	OnEvaluationError func(context.Context, *EvaluationEvent)
	OnComponentLoad   func(context.Context, *ComponentEvent)
	OnNavigate        func(context.Context, *NavigationEvent)
}

// Combine returns hooks that call every non-nil callback of each argument in order.
func Combine(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		h := h
		out.OnPassStart = chain(out.OnPassStart, h.OnPassStart)
		out.OnPassComplete = chain(out.OnPassComplete, h.OnPassComplete)
		out.OnEvaluationError = chain(out.OnEvaluationError, h.OnEvaluationError)
		out.OnComponentLoad = chain(out.OnComponentLoad, h.OnComponentLoad)
		out.OnNavigate = chain(out.OnNavigate, h.OnNavigate)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}

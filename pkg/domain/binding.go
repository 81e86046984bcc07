package domain

import "strings"

// BindingKind classifies a directive attribute.
type BindingKind int

const (
	// BindingEvent wires a handler expression to a node signal (@click).
	BindingEvent BindingKind = iota + 1
	// BindingOwnProperty projects an expression onto a property of the node ($text).
	BindingOwnProperty
	// BindingParentProperty projects an expression onto a property of the parent (^class).
	BindingParentProperty
	// BindingConditional gates the node subtree (:if).
	BindingConditional
	// BindingRepeat materializes one clone of the node per sequence item (:for).
	BindingRepeat
)

func (k BindingKind) String() string {
	switch k {
	case BindingEvent:
		return "event"
	case BindingOwnProperty:
		return "own-property"
	case BindingParentProperty:
		return "parent-property"
	case BindingConditional:
		return "conditional"
	case BindingRepeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// Directive attribute surface.
const (
	PrefixEvent          = "@"
	PrefixOwnProperty    = "$"
	PrefixParentProperty = "^"

	AttrIf   = ":if"
	AttrFor  = ":for"
	AttrEach = ":each"

	// DefaultEachAlias is the loop variable name when :each is absent.
	DefaultEachAlias = "item"

	// EventForm is the event alias that binds submit with default prevention
	// and form field capture.
	EventForm = "form"
)

// Binding is a parsed directive attribute.
type Binding struct {
	Kind BindingKind
	// Attr is the raw attribute name as found on the node.
	Attr string
	// Key is the normalized event or property name. Empty for :if and :for.
	Key string
	// Expr is the attribute text, evaluated as code.
	Expr string
	// Form is set on event bindings declared with the @form alias.
	Form bool
}

// ParseBinding classifies one attribute. It returns false for literal attributes
// and for :each, which only qualifies a repeat.
func ParseBinding(name, value string) (Binding, bool) {
	switch {
	case name == AttrIf:
		return Binding{Kind: BindingConditional, Attr: name, Expr: value}, true
	case name == AttrFor:
		return Binding{Kind: BindingRepeat, Attr: name, Expr: value}, true
	case len(name) < 2:
		return Binding{}, false
	case strings.HasPrefix(name, PrefixEvent):
		event, form := NormalizeEvent(name[1:])
		return Binding{Kind: BindingEvent, Attr: name, Key: event, Expr: value, Form: form}, true
	case strings.HasPrefix(name, PrefixOwnProperty):
		return Binding{Kind: BindingOwnProperty, Attr: name, Key: NormalizeProperty(name[1:]), Expr: value}, true
	case strings.HasPrefix(name, PrefixParentProperty):
		return Binding{Kind: BindingParentProperty, Attr: name, Key: NormalizeProperty(name[1:]), Expr: value}, true
	}
	return Binding{}, false
}

// NormalizeEvent resolves event aliases. The second result reports the @form alias.
func NormalizeEvent(name string) (string, bool) {
	name = strings.ToLower(name)
	if name == EventForm {
		return SignalSubmit, true
	}
	return name, false
}

var propertyAliases = map[string]string{
	"text":  "textContent",
	"html":  "innerHTML",
	"class": "className",
}

// NormalizeProperty resolves property aliases and folds hyphenated names into
// their camel-cased form (inner-text becomes innerText).
func NormalizeProperty(name string) string {
	if alias, ok := propertyAliases[name]; ok {
		return alias
	}
	if !strings.Contains(name, "-") {
		return name
	}
	parts := strings.Split(name, "-")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	if alias, ok := propertyAliases[b.String()]; ok {
		return alias
	}
	return b.String()
}

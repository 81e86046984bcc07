package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBinding(t *testing.T) {
	tests := []struct {
		name  string
		attr  string
		want  Binding
		found bool
	}{
		{"click event", "@click", Binding{Kind: BindingEvent, Attr: "@click", Key: "click", Expr: "x"}, true},
		{"form alias", "@form", Binding{Kind: BindingEvent, Attr: "@form", Key: SignalSubmit, Expr: "x", Form: true}, true},
		{"text alias", "$text", Binding{Kind: BindingOwnProperty, Attr: "$text", Key: "textContent", Expr: "x"}, true},
		{"parent class", "^class", Binding{Kind: BindingParentProperty, Attr: "^class", Key: "className", Expr: "x"}, true},
		{"hyphenated", "$inner-text", Binding{Kind: BindingOwnProperty, Attr: "$inner-text", Key: "innerText", Expr: "x"}, true},
		{"conditional", ":if", Binding{Kind: BindingConditional, Attr: ":if", Expr: "x"}, true},
		{"repeat", ":for", Binding{Kind: BindingRepeat, Attr: ":for", Expr: "x"}, true},
		{"each is not a binding", ":each", Binding{}, false},
		{"literal", "class", Binding{}, false},
		{"bare prefix", "@", Binding{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseBinding(tt.attr, "x")
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeProperty(t *testing.T) {
	assert.Equal(t, "innerHTML", NormalizeProperty("html"))
	assert.Equal(t, "value", NormalizeProperty("value"))
	assert.Equal(t, "dataFooBar", NormalizeProperty("data-foo-bar"))
	assert.Equal(t, "className", NormalizeProperty("class"))
}

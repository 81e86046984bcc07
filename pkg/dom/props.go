package dom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var booleanProps = map[string]string{
	"hidden":   "hidden",
	"checked":  "checked",
	"disabled": "disabled",
	"selected": "selected",
	"required": "required",
	"readOnly": "readonly",
	"multiple": "multiple",
	"open":     "open",
}

// SetProperty projects v onto the named property of n.
// Text-like properties stringify v, boolean properties add or remove their
// attribute, and anything else is written to the matching attribute
// (camel-cased names map to hyphenated attributes).
func SetProperty(n *html.Node, name string, v any) error {
	switch name {
	case "textContent", "innerText":
		SetText(n, String(v))
	case "innerHTML":
		return SetInnerHTML(n, String(v))
	case "className":
		SetAttr(n, "class", String(v))
	case "value":
		setValue(n, String(v))
	default:
		if attr, ok := booleanProps[name]; ok {
			if truthy(v) {
				SetAttr(n, attr, "")
			} else {
				RemoveAttr(n, attr)
			}
			return nil
		}
		if v == nil {
			RemoveAttr(n, attrName(name))
			return nil
		}
		SetAttr(n, attrName(name), String(v))
	}
	return nil
}

// Property reads the named property of n.
func Property(n *html.Node, name string) any {
	switch name {
	case "textContent", "innerText":
		return Text(n)
	case "innerHTML":
		return InnerHTML(n)
	case "outerHTML":
		return OuterHTML(n)
	case "className":
		v, _ := Attr(n, "class")
		return v
	case "tagName":
		return strings.ToUpper(n.Data)
	case "value":
		return value(n)
	}
	if attr, ok := booleanProps[name]; ok {
		return HasAttr(n, attr)
	}
	if v, ok := Attr(n, attrName(name)); ok {
		return v
	}
	return nil
}

func setValue(n *html.Node, v string) {
	switch n.Data {
	case "textarea":
		SetText(n, v)
	case "select":
		for _, opt := range options(n) {
			if optionValue(opt) == v {
				SetAttr(opt, "selected", "")
			} else {
				RemoveAttr(opt, "selected")
			}
		}
	default:
		SetAttr(n, "value", v)
	}
}

func value(n *html.Node) string {
	switch n.Data {
	case "textarea":
		return Text(n)
	case "select":
		opts := options(n)
		for _, opt := range opts {
			if HasAttr(opt, "selected") {
				return optionValue(opt)
			}
		}
		if len(opts) > 0 {
			return optionValue(opts[0])
		}
		return ""
	}
	v, _ := Attr(n, "value")
	return v
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range Elements(sel) {
		if n.Data == "option" {
			out = append(out, n)
		}
	}
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := Attr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(Text(opt))
}

// attrName maps a camel-cased property name to its hyphenated attribute.
func attrName(prop string) string {
	var b strings.Builder
	for i, r := range prop {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// String renders a projected value the way text properties display it.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		switch {
		case math.IsNaN(t):
			return "NaN"
		case math.IsInf(t, 1):
			return "Infinity"
		case math.IsInf(t, -1):
			return "-Infinity"
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	return String(v) != "0"
}

package dom

import "golang.org/x/net/html"

// ClosestForm returns n or its nearest <form> ancestor, or nil.
func ClosestForm(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.Data == "form" {
			return n
		}
	}
	return nil
}

func fields(form *html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range Elements(form) {
		switch n.Data {
		case "input", "select", "textarea":
			if name, ok := Attr(n, "name"); ok && name != "" {
				out = append(out, n)
			}
		}
	}
	return out
}

// FormData captures the named fields under form. Checkboxes yield their
// checked state, radio groups the value of the checked member, and every
// other field its current value.
func FormData(form *html.Node) map[string]any {
	data := map[string]any{}
	for _, f := range fields(form) {
		name, _ := Attr(f, "name")
		typ, _ := Attr(f, "type")
		switch {
		case f.Data == "input" && typ == "checkbox":
			data[name] = HasAttr(f, "checked")
		case f.Data == "input" && typ == "radio":
			if HasAttr(f, "checked") {
				data[name] = value(f)
			} else if _, seen := data[name]; !seen {
				data[name] = nil
			}
		case f.Data == "input" && (typ == "submit" || typ == "button" || typ == "reset"):
		default:
			data[name] = value(f)
		}
	}
	return data
}

// ResetForm clears the named fields under form: text values are emptied,
// checkboxes and radios unchecked and selects fall back to their first option.
func ResetForm(form *html.Node) {
	for _, f := range fields(form) {
		typ, _ := Attr(f, "type")
		switch {
		case f.Data == "input" && (typ == "checkbox" || typ == "radio"):
			RemoveAttr(f, "checked")
		case f.Data == "input" && (typ == "submit" || typ == "button" || typ == "reset" || typ == "hidden"):
		case f.Data == "select":
			for _, opt := range options(f) {
				RemoveAttr(opt, "selected")
			}
		case f.Data == "textarea":
			Clear(f)
		default:
			RemoveAttr(f, "value")
		}
	}
}

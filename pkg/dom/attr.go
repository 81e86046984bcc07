package dom

import "golang.org/x/net/html"

// Attr returns the value of the named attribute.
func Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n carries the named attribute.
func HasAttr(n *html.Node, name string) bool {
	_, ok := Attr(n, name)
	return ok
}

// SetAttr sets the named attribute, appending it when missing.
func SetAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr removes the named attribute.
func RemoveAttr(n *html.Node, name string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// Hide marks n hidden.
func Hide(n *html.Node) { SetAttr(n, "hidden", "") }

// Show clears the hidden mark of n.
func Show(n *html.Node) { RemoveAttr(n, "hidden") }

// Hidden reports whether n is marked hidden.
func Hidden(n *html.Node) bool { return HasAttr(n, "hidden") }

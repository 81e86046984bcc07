package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses a complete document.
func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// Body returns the body element of a parsed document, or doc itself when it has none.
func Body(doc *html.Node) *html.Node {
	if body := htmlquery.FindOne(doc, "//body"); body != nil {
		return body
	}
	return doc
}

// ParseFragment parses markup as the content of a detached <body>.
func ParseFragment(markup string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}
	return nodes, nil
}

// FirstElement returns the first element node of nodes.
func FirstElement(nodes []*html.Node) *html.Node {
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n
		}
	}
	return nil
}

// Elements returns the element descendants of root in document order, root excluded.
// The result is a snapshot: later mutations do not affect it.
func Elements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// Walk calls fn for n and every descendant in document order.
func Walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// Clone returns a deep copy of n, detached from any tree.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      make([]html.Attribute, len(n.Attr)),
	}
	copy(clone.Attr, n.Attr)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(Clone(c))
	}
	return clone
}

// InsertAfter inserts n as the next sibling of ref.
func InsertAfter(ref, n *html.Node) error {
	if ref.Parent == nil {
		return fmt.Errorf("insert after <%s>: node is detached", ref.Data)
	}
	Detach(n)
	ref.Parent.InsertBefore(n, ref.NextSibling)
	return nil
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Clear removes every child of n.
func Clear(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// Render writes the markup of n.
func Render(w io.Writer, n *html.Node) error {
	return html.Render(w, n)
}

// OuterHTML returns the markup of n itself.
func OuterHTML(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

// InnerHTML returns the markup of the children of n.
func InnerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// SetInnerHTML replaces the children of n with the parsed markup.
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("parsing inner markup: %w", err)
	}
	Clear(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// Text returns the concatenated text of n and its descendants.
func Text(n *html.Node) string {
	return htmlquery.InnerText(n)
}

// SetText replaces the children of n with a single text node.
func SetText(n *html.Node, text string) {
	Clear(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

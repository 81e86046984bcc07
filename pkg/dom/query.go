package dom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	xpathCacheMu sync.Mutex
	xpathCache   = map[string]string{}
)

// Query returns the first element under root matching the selector, or nil.
// Selectors are a CSS subset (see ToXPath); raw XPath is accepted as well.
func Query(root *html.Node, selector string) (*html.Node, error) {
	expr, err := compiled(selector)
	if err != nil {
		return nil, err
	}
	return htmlquery.Query(root, expr)
}

// QueryAll returns every element under root matching the selector, in document order.
func QueryAll(root *html.Node, selector string) ([]*html.Node, error) {
	expr, err := compiled(selector)
	if err != nil {
		return nil, err
	}
	return htmlquery.QueryAll(root, expr)
}

func compiled(selector string) (string, error) {
	xpathCacheMu.Lock()
	defer xpathCacheMu.Unlock()
	if expr, ok := xpathCache[selector]; ok {
		return expr, nil
	}
	expr, err := ToXPath(selector)
	if err != nil {
		return "", err
	}
	xpathCache[selector] = expr
	return expr, nil
}

// Refs maps the data-ref names of the elements under root to their nodes.
// Names are camel-cased (user-name becomes userName).
func Refs(root *html.Node) map[string]*html.Node {
	return collect(root, "data-ref")
}

// IDs maps the camel-cased ids of the elements under root to their nodes.
func IDs(root *html.Node) map[string]*html.Node {
	return collect(root, "id")
}

func collect(root *html.Node, attr string) map[string]*html.Node {
	out := map[string]*html.Node{}
	for _, n := range Elements(root) {
		if v, ok := Attr(n, attr); ok && v != "" {
			out[camel(v)] = n
		}
	}
	return out
}

func camel(s string) string {
	parts := strings.Split(s, "-")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// ToXPath translates a CSS selector into an XPath expression relative to the
// context node. Supported: type and universal selectors, #id, .class,
// attribute selectors ([a], [a=v], [a~=v], [a^=v], [a$=v], [a*=v]), the
// descendant and child combinators, and comma-separated selector lists.
// Input that already looks like XPath is returned unchanged.
func ToXPath(css string) (string, error) {
	css = strings.TrimSpace(css)
	if css == "" {
		return "", fmt.Errorf("empty selector")
	}
	if strings.HasPrefix(css, "/") || strings.HasPrefix(css, "./") || strings.HasPrefix(css, "(") {
		return css, nil
	}

	groups, err := split(css, ',')
	if err != nil {
		return "", err
	}
	paths := make([]string, 0, len(groups))
	for _, g := range groups {
		p, err := compileGroup(strings.TrimSpace(g))
		if err != nil {
			return "", fmt.Errorf("selector %q: %w", css, err)
		}
		paths = append(paths, p)
	}
	return strings.Join(paths, " | "), nil
}

// split cuts s at sep outside brackets and quotes.
func split(s string, sep byte) ([]string, error) {
	var out []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if quote != 0 || depth != 0 {
		return nil, fmt.Errorf("unbalanced selector %q", s)
	}
	return append(out, s[start:]), nil
}

func compileGroup(sel string) (string, error) {
	if sel == "" {
		return "", fmt.Errorf("empty selector in list")
	}
	var b strings.Builder
	b.WriteString(".")
	axis := "//"
	i := 0
	for i < len(sel) {
		switch c := sel[i]; {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '>':
			axis = "/"
			i++
		default:
			end := compoundEnd(sel, i)
			step, err := compileCompound(sel[i:end])
			if err != nil {
				return "", err
			}
			b.WriteString(axis)
			b.WriteString(step)
			axis = "//"
			i = end
		}
	}
	return b.String(), nil
}

func compoundEnd(s string, i int) int {
	depth := 0
	var quote byte
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case depth == 0 && (c == ' ' || c == '\t' || c == '\n' || c == '>'):
			return i
		}
	}
	return i
}

func compileCompound(s string) (string, error) {
	tag := "*"
	var preds []string
	i := 0
	if s[0] == '*' {
		i = 1
	} else if isIdent(s[0]) {
		j := identEnd(s, 0)
		tag = strings.ToLower(s[:j])
		i = j
	}
	for i < len(s) {
		switch s[i] {
		case '#':
			j := identEnd(s, i+1)
			if j == i+1 {
				return "", fmt.Errorf("empty id")
			}
			preds = append(preds, "@id="+literal(s[i+1:j]))
			i = j
		case '.':
			j := identEnd(s, i+1)
			if j == i+1 {
				return "", fmt.Errorf("empty class")
			}
			preds = append(preds, "contains(concat(' ', normalize-space(@class), ' '), "+literal(" "+s[i+1:j]+" ")+")")
			i = j
		case '[':
			j := strings.IndexByte(s[i:], ']')
			if j < 0 {
				return "", fmt.Errorf("unterminated attribute selector")
			}
			p, err := attrPredicate(s[i+1 : i+j])
			if err != nil {
				return "", err
			}
			preds = append(preds, p)
			i += j + 1
		default:
			return "", fmt.Errorf("unsupported token %q", s[i:])
		}
	}
	if len(preds) == 0 {
		return tag, nil
	}
	return tag + "[" + strings.Join(preds, " and ") + "]", nil
}

func attrPredicate(s string) (string, error) {
	s = strings.TrimSpace(s)
	opAt := strings.IndexAny(s, "~^$*=")
	if opAt < 0 {
		if s == "" {
			return "", fmt.Errorf("empty attribute selector")
		}
		return "@" + s, nil
	}
	name := strings.TrimSpace(s[:opAt])
	op := s[opAt : opAt+1]
	rest := s[opAt+1:]
	if op != "=" {
		if !strings.HasPrefix(rest, "=") {
			return "", fmt.Errorf("bad attribute operator in [%s]", s)
		}
		rest = rest[1:]
	}
	val := unquote(strings.TrimSpace(rest))
	attr := "@" + name
	lit := literal(val)
	switch op {
	case "=":
		return attr + "=" + lit, nil
	case "~":
		return "contains(concat(' ', normalize-space(" + attr + "), ' '), " + literal(" "+val+" ") + ")", nil
	case "^":
		return "starts-with(" + attr + ", " + lit + ")", nil
	case "*":
		return "contains(" + attr + ", " + lit + ")", nil
	default: // "$"
		return "substring(" + attr + ", string-length(" + attr + ") - string-length(" + lit + ") + 1) = " + lit, nil
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	return `"` + s + `"`
}

func isIdent(c byte) bool {
	return c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func identEnd(s string, i int) int {
	for i < len(s) && isIdent(s[i]) {
		i++
	}
	return i
}

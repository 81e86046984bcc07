// Package validator checks a tree of component markup before it is served.
package validator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/arbor/pkg/component"
	"github.com/aretw0/arbor/pkg/dom"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"golang.org/x/net/html"
)

// Compiler checks directive expression text without evaluating it.
type Compiler interface {
	Compile(expr string) error
}

// ScriptCompiler checks component script bodies. Compilers implementing it
// also validate inline scripts.
type ScriptCompiler interface {
	CompileScript(source string) error
}

var loadCall = regexp.MustCompile(`load(Component|HTML)\(\s*['"]([^'"]+)['"]`)

// ValidateComponents crawls the markup reachable from start, following page
// links and literal loadComponent/loadHTML calls, and reports missing
// components, malformed directives and expressions that do not compile.
func ValidateComponents(ctx context.Context, fetcher ports.Fetcher, compiler Compiler, start string) error {
	visited := make(map[string]bool)
	queue := []string{start}
	var errs []string

	for len(queue) > 0 {
		locator := queue[0]
		queue = queue[1:]

		if visited[locator] {
			continue
		}
		visited[locator] = true

		data, err := fetcher.Fetch(ctx, locator)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Missing component or load error: '%s'", locator))
			continue
		}
		nodes, err := dom.ParseFragment(string(data))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", locator, err))
			continue
		}

		for _, top := range nodes {
			dom.Walk(top, func(n *html.Node) {
				if n.Type != html.ElementNode {
					return
				}
				refs, problems := inspect(n, compiler)
				for _, p := range problems {
					errs = append(errs, fmt.Sprintf("%s: <%s>: %s", locator, n.Data, p))
				}
				for _, ref := range refs {
					if !visited[ref] {
						queue = append(queue, ref)
					}
				}
			})
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(errs, "\n- "))
	}
	return nil
}

// inspect returns the components n refers to and the problems found on it.
func inspect(n *html.Node, compiler Compiler) (refs, problems []string) {
	if n.Data == "script" {
		return inspectScript(n, compiler)
	}

	_, hasFor := dom.Attr(n, domain.AttrFor)
	for _, a := range n.Attr {
		if a.Key == domain.AttrEach && !hasFor {
			problems = append(problems, fmt.Sprintf("%s without %s", domain.AttrEach, domain.AttrFor))
		}
		if a.Key == "href" {
			if page, ok := domain.ParseFragment(a.Val); ok && strings.HasPrefix(a.Val, "#") && a.Val != "#" {
				refs = append(refs, component.HTMLLocator(page))
			}
		}

		b, ok := domain.ParseBinding(a.Key, a.Val)
		if !ok {
			continue
		}
		if strings.TrimSpace(b.Expr) == "" {
			problems = append(problems, fmt.Sprintf("%s has an empty expression", b.Attr))
			continue
		}
		if err := compiler.Compile(b.Expr); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", b.Attr, err))
		}
	}
	return refs, problems
}

func inspectScript(n *html.Node, compiler Compiler) (refs, problems []string) {
	if _, ok := dom.Attr(n, "src"); ok {
		return nil, nil
	}
	source := dom.Text(n)
	if sc, ok := compiler.(ScriptCompiler); ok {
		if err := sc.CompileScript(source); err != nil {
			problems = append(problems, err.Error())
		}
	}
	for _, m := range loadCall.FindAllStringSubmatch(source, -1) {
		if m[1] == "HTML" {
			refs = append(refs, component.HTMLLocator(m[2]))
		} else {
			refs = append(refs, m[2])
		}
	}
	return refs, problems
}

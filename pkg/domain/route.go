package domain

import (
	"regexp"
	"strings"
)

// DefaultPage is navigated to when the fragment is empty.
const DefaultPage = "home"

// Context keys written by the router on every completed transition.
const (
	KeyPage     = "page"
	KeyPageBack = "pageBack"
)

var fragmentPattern = regexp.MustCompile(`^page=([\w-]+)$`)

// ParseFragment extracts the page name from a navigation fragment of the
// form "#page=<name>". An empty fragment resolves to DefaultPage.
func ParseFragment(fragment string) (string, bool) {
	fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	if fragment == "" {
		return DefaultPage, true
	}
	m := fragmentPattern.FindStringSubmatch(fragment)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// PageFragment formats the fragment that navigates to page.
func PageFragment(page string) string {
	return "page=" + page
}

// Token is an opaque per-invocation cancellation value. A lifecycle hook vetoes
// a transition by returning the exact token it was handed.
type Token string

// Outcome is the result of one router transition.
type Outcome string

const (
	// OutcomeNavigated means the new view was mounted and revealed with its entry transition.
	OutcomeNavigated Outcome = "navigated"
	// OutcomeSilent means the new view's mount hook returned its token: mounted, not animated.
	OutcomeSilent Outcome = "silent"
	// OutcomeVetoed means the current view's unmount hook returned its token.
	OutcomeVetoed Outcome = "vetoed"
	// OutcomeIgnored means the fragment did not match the page protocol.
	OutcomeIgnored Outcome = "ignored"
)

// RouteState is the router's view of where the application is.
type RouteState struct {
	Page     string `json:"page"`
	Previous string `json:"previous,omitempty"`
}

// Package access decides whether the current session may open a page.
//
// Checks run in a fixed order so the most specific reason wins: a session or flag
// set that is still loading defers the decision, then authentication, then role,
// then the page's feature flag.
package access

import (
	"github.com/cccteam/websession/roles"
	"github.com/cccteam/websession/sessioninfo"
)

// Redirect targets.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// DisabledReason explains a page hidden by a feature flag.
const DisabledReason = "This page is not enabled for your organization"

// Kind discriminates a Decision.
type Kind int

const (
	// Allow lets the request through.
	Allow Kind = iota
	// Loading defers the decision until the session and flags are loaded.
	Loading
	// DenyRedirect sends the user to Target.
	DenyRedirect
	// DenyExplain shows Reason and sends the user to Target.
	DenyExplain
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Loading:
		return "loading"
	case DenyRedirect:
		return "redirect"
	case DenyExplain:
		return "explain"
	}

	return "unknown"
}

// Decision is the outcome of Decide. Target is set for the deny kinds, Reason for DenyExplain.
type Decision struct {
	Kind   Kind
	Target string
	Reason string
}

// Request describes the page being opened.
type Request struct {
	Path string
	// RequiredRoles restricts the page to these roles. Empty means any signed-in user.
	RequiredRoles roles.Collection
}

// PageChecker reports feature flag state.
type PageChecker interface {
	IsPageEnabled(pathOrKey string) bool
	Loading() bool
}

// Decide returns the access decision for req.
func Decide(session sessioninfo.Snapshot, flags PageChecker, req Request) Decision {
	if session.Loading() || flags.Loading() {
		return Decision{Kind: Loading}
	}

	if !session.Authenticated() {
		return Decision{Kind: DenyRedirect, Target: LoginPath}
	}

	if len(req.RequiredRoles) > 0 && !req.RequiredRoles.Contains(session.Role()) {
		return Decision{Kind: DenyRedirect, Target: DashboardPath}
	}

	if !flags.IsPageEnabled(req.Path) {
		return Decision{Kind: DenyExplain, Target: DashboardPath, Reason: DisabledReason}
	}

	return Decision{Kind: Allow}
}

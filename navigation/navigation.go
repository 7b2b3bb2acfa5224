// Package navigation filters the static menu by the signed-in role and the page feature flags.
package navigation

import (
	"github.com/cccteam/websession/roles"
	"github.com/cccteam/websession/sessioninfo"
)

// Entry is one static menu entry.
type Entry struct {
	Label string
	Icon  string
	Path  string
	// AllowedRoles restricts the entry to these roles. Empty means every role.
	AllowedRoles roles.Collection
	// RequiresTenant marks entries that operate on a single tenant.
	RequiresTenant bool
}

// Item is a visible entry. Disabled entries are shown but cannot be opened.
type Item struct {
	Entry
	Disabled bool
}

// PageChecker reports whether a page is enabled.
type PageChecker interface {
	IsPageEnabled(pathOrKey string) bool
}

// Visible returns the entries role may see, in their original order.
func Visible(entries []Entry, role roles.Role, flags PageChecker) []Entry {
	visible := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if len(e.AllowedRoles) > 0 && !e.AllowedRoles.Contains(role) {
			continue
		}
		if !flags.IsPageEnabled(e.Path) {
			continue
		}
		visible = append(visible, e)
	}

	return visible
}

// Items returns the visible entries of the session. Entries that need a tenant are
// disabled for a cross-tenant user who has not selected one.
func Items(entries []Entry, session sessioninfo.Snapshot, flags PageChecker) []Item {
	if !session.Authenticated() {
		return []Item{}
	}

	role := session.Role()
	noTenant := role.CrossTenant() && !session.Tenant.HasTenant()

	visible := Visible(entries, role, flags)
	items := make([]Item, 0, len(visible))
	for _, e := range visible {
		items = append(items, Item{
			Entry:    e,
			Disabled: e.RequiresTenant && noTenant,
		})
	}

	return items
}

// Package sessioninfo holds the data model of a client session: the signed-in user, the active
// tenant and the lifecycle state.
package sessioninfo

import (
	"github.com/cccteam/websession/roles"
)

// State is the lifecycle state of a session.
type State int

const (
	// Unauthenticated means no valid token is held.
	Unauthenticated State = iota
	// Restoring means a persisted token is being examined at startup.
	Restoring
	// Authenticated means a non-expired token is held and User is populated.
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	}

	return "unknown"
}

// User is the projection of the token claims, optionally enriched by a later profile fetch.
type User struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Role              roles.Role `json:"role"`
	ProfilePictureURL string     `json:"profilePictureUrl,omitempty"`
}

// TenantContext is the tenant the session operates on. For the cross-tenant role it reflects
// the current selection; for every other role it is fixed by the token.
type TenantContext struct {
	SelectedTenantID *int64 `json:"selectedTenantId,omitempty"`
	TenantName       string `json:"tenantName,omitempty"`
}

// HasTenant reports whether a tenant is set.
func (t TenantContext) HasTenant() bool {
	return t.SelectedTenantID != nil
}

// TenantID returns the tenant id, or zero when none is set.
func (t TenantContext) TenantID() int64 {
	if t.SelectedTenantID == nil {
		return 0
	}

	return *t.SelectedTenantID
}

// Snapshot is an immutable copy of the session. User is non-nil iff State is Authenticated.
type Snapshot struct {
	State     State
	Token     string
	User      *User
	Tenant    TenantContext
	SessionID string
}

// Authenticated reports whether the snapshot holds a signed-in user.
func (s Snapshot) Authenticated() bool {
	return s.State == Authenticated && s.User != nil
}

// Loading reports whether the session has not finished restoring.
func (s Snapshot) Loading() bool {
	return s.State == Restoring
}

// Role returns the role of the signed-in user, or the empty Role.
func (s Snapshot) Role() roles.Role {
	if s.User == nil {
		return ""
	}

	return s.User.Role
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	c := s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	if s.Tenant.SelectedTenantID != nil {
		id := *s.Tenant.SelectedTenantID
		c.Tenant.SelectedTenantID = &id
	}

	return c
}

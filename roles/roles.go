// Package roles defines the closed set of capability levels a signed-in user can hold.
package roles

import (
	"slices"
	"strings"

	"github.com/go-playground/errors/v5"
)

// Role is a capability level carried in the session token. A session holds exactly one Role
// and it never changes for the lifetime of that session.
type Role string

const (
	// Admin may operate across tenants and must select a tenant each session.
	Admin Role = "ADMIN"
	// HR manages the employees of a single tenant.
	HR Role = "HR"
	// Manager manages a department inside a single tenant.
	Manager Role = "MANAGER"
	// Employee is a regular member of a single tenant.
	Employee Role = "EMPLOYEE"
)

// All returns every known Role, most privileged first.
func All() Collection {
	return Collection{Admin, HR, Manager, Employee}
}

// Parse returns the Role for s. Matching is case-insensitive; unknown values are an error.
func Parse(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", errors.Newf("unknown role %q", s)
	}

	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case Admin, HR, Manager, Employee:
		return true
	}

	return false
}

// CrossTenant reports whether r may switch between tenants.
func (r Role) CrossTenant() bool {
	return r == Admin
}

func (r Role) String() string {
	return string(r)
}

// Collection is an allow-list of roles.
type Collection []Role

// Contains reports whether r is in the collection.
func (c Collection) Contains(r Role) bool {
	return slices.Contains(c, r)
}

// Strings returns the collection as plain strings, e.g. for span attributes.
func (c Collection) Strings() []string {
	s := make([]string, 0, len(c))
	for _, r := range c {
		s = append(s, string(r))
	}

	return s
}

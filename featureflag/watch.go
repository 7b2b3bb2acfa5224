package featureflag

import (
	"context"

	"github.com/cccteam/websession"
	"github.com/cccteam/websession/sessioninfo"
)

// IdentityOf returns the flag identity of a session snapshot.
func IdentityOf(s sessioninfo.Snapshot) Identity {
	if !s.Authenticated() || s.User == nil {
		return Identity{}
	}

	id := Identity{UserID: s.User.ID}
	if s.User.Role.CrossTenant() && s.Tenant.SelectedTenantID != nil {
		tenantID := *s.Tenant.SelectedTenantID
		id.TenantID = &tenantID
	}

	return id
}

// Watch reloads the flags whenever the identity of source changes, starting
// with its current state. Events only trigger a check: the identity is always
// read from source, so an event delivered late cannot bring back an older
// tenant. Loads run in the background, detached from the cancellation of ctx.
// The returned func stops watching.
func (g *Gate) Watch(ctx context.Context, source SessionSource) (stop func()) {
	ctx = context.WithoutCancel(ctx)

	check := func() {
		g.mu.Lock()
		s := source.Snapshot()
		if s.Loading() {
			g.mu.Unlock()

			return
		}
		id := IdentityOf(s)
		if g.generation > 0 && g.identity.Equal(id) {
			g.mu.Unlock()

			return
		}
		gen := g.begin(id)
		g.mu.Unlock()

		go func() {
			ctx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()

			g.load(ctx, gen, id)
		}()
	}

	stop = source.Subscribe(func(websession.Event) {
		check()
	})
	check()

	return stop
}

package featureflag

import (
	"context"

	"github.com/cccteam/websession"
	"github.com/cccteam/websession/api"
	"github.com/cccteam/websession/sessioninfo"
)

var (
	_ Fetcher       = &api.Client{}
	_ SessionSource = &websession.Controller{}
)

// Fetcher loads the raw page flags of a tenant. A nil tenantID means the caller's own tenant.
type Fetcher interface {
	FeatureFlags(ctx context.Context, tenantID *int64) (map[string]bool, error)
}

// SessionSource publishes session changes.
type SessionSource interface {
	Snapshot() sessioninfo.Snapshot
	Subscribe(fn func(websession.Event)) (unsubscribe func())
}

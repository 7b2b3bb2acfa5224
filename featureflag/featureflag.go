// Package featureflag answers whether a page is enabled for the active tenant.
// Unknown pages are enabled, and a failed fetch enables every known page.
package featureflag

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cccteam/ccc"
	"github.com/cccteam/logger"
	"github.com/cccteam/websession/metrics"
	"github.com/cccteam/websession/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Load results recorded in metrics.
const (
	resultOK    = "ok"
	resultError = "error"
	resultStale = "stale"
	resultEmpty = "empty"
)

// DefaultKnownPages are the page keys enabled when the flag fetch fails.
var DefaultKnownPages = []string{
	"dashboard",
	"employees",
	"departments",
	"attendance",
	"shifts",
	"leave-requests",
	"tickets",
	"announcements",
	"accounting",
	"payroll",
	"reports",
	"companies",
	"monitoring",
	"settings",
}

// Set maps a kebab-case page key to its enabled state. A missing key is enabled.
type Set map[string]bool

// Identity is the (user, tenant) pair flags are loaded for.
type Identity struct {
	UserID int64
	// TenantID is the selected tenant of a cross-tenant user, nil otherwise.
	TenantID *int64
}

// Empty reports whether no user is signed in.
func (i Identity) Empty() bool {
	return i.UserID == 0
}

// Equal reports whether both identities name the same user and tenant.
func (i Identity) Equal(o Identity) bool {
	if i.UserID != o.UserID {
		return false
	}
	if i.TenantID == nil || o.TenantID == nil {
		return i.TenantID == nil && o.TenantID == nil
	}

	return *i.TenantID == *o.TenantID
}

// Normalize turns a path or key into a page key: one leading "/" is removed and
// everything from the next "/" on is dropped.
func Normalize(pathOrKey string) string {
	key := strings.TrimPrefix(pathOrKey, "/")
	key, _, _ = strings.Cut(key, "/")

	return key
}

// Gate holds the flags of the current identity.
type Gate struct {
	fetcher Fetcher
	known   []string
	metrics *metrics.Collector
	timeout time.Duration

	mu         sync.RWMutex
	flags      Set
	loading    bool
	generation uint64
	identity   Identity
}

// New returns a Gate that loads flags through fetcher. The gate reports Loading until the first Load completes.
func New(fetcher Fetcher, options ...Option) *Gate {
	g := &Gate{
		fetcher: fetcher,
		known:   DefaultKnownPages,
		timeout: 10 * time.Second,
		flags:   Set{},
		loading: true,
	}
	for _, opt := range options {
		opt(g)
	}

	return g
}

// IsPageEnabled reports whether the page named by pathOrKey is enabled.
func (g *Gate) IsPageEnabled(pathOrKey string) bool {
	key := Normalize(pathOrKey)

	g.mu.RLock()
	defer g.mu.RUnlock()

	enabled, ok := g.flags[key]

	return !ok || enabled
}

// Loading reports whether a load is outstanding.
func (g *Gate) Loading() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.loading
}

// Flags returns a copy of the current flags.
func (g *Gate) Flags() Set {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return maps.Clone(g.flags)
}

// Load replaces the flags with those of identity. An empty identity clears the flags.
// When loads overlap only the most recently started one is applied.
func (g *Gate) Load(ctx context.Context, identity Identity) {
	g.mu.Lock()
	gen := g.begin(identity)
	g.mu.Unlock()

	g.load(ctx, gen, identity)
}

// begin starts a load of identity and returns its generation. g.mu must be held.
func (g *Gate) begin(identity Identity) uint64 {
	g.generation++
	g.identity = identity
	g.loading = true

	return g.generation
}

func (g *Gate) load(ctx context.Context, gen uint64, identity Identity) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	var (
		next   = Set{}
		result = resultEmpty
	)
	if !identity.Empty() {
		span.SetAttributes(attribute.Int64("user.id", identity.UserID))
		if identity.TenantID != nil {
			span.SetAttributes(attribute.Int64("tenant.id", *identity.TenantID))
		}
		next, result = g.fetch(ctx, identity)
	}

	g.mu.Lock()
	if gen != g.generation {
		g.mu.Unlock()
		g.metrics.FlagLoad(resultStale)
		logger.FromCtx(ctx).Debugf("discarding feature flags of superseded load %d", gen)

		return
	}
	prev := g.flags
	g.flags = next
	g.loading = false
	g.mu.Unlock()

	g.metrics.FlagLoad(result)
	if disabled := util.Exclude(next.disabled(), prev.disabled()); len(disabled) > 0 {
		logger.FromCtx(ctx).Infof("pages disabled for user %d: %s", identity.UserID, strings.Join(disabled, ", "))
	}
}

func (g *Gate) fetch(ctx context.Context, identity Identity) (Set, string) {
	pages, err := g.fetcher.FeatureFlags(ctx, identity.TenantID)
	if err != nil {
		logger.FromCtx(ctx).Errorf("failed to load feature flags, enabling all pages: %v", err)
		trace.SpanFromContext(ctx).RecordError(err)

		fallback := make(Set, len(g.known))
		for _, k := range g.known {
			fallback[k] = true
		}

		return fallback, resultError
	}

	flags := make(Set, len(pages))
	for k, v := range pages {
		flags[util.KebabCase(k)] = v
	}

	return flags, resultOK
}

func (s Set) disabled() []string {
	var keys []string
	for k, v := range s {
		if !v {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	return keys
}

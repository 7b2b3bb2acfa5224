package access

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cccteam/ccc"
	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"github.com/cccteam/websession/metrics"
	"github.com/cccteam/websession/roles"
	"github.com/cccteam/websession/sessioninfo"
	"go.opentelemetry.io/otel/attribute"
)

// SessionSource provides the current session.
type SessionSource interface {
	Snapshot() sessioninfo.Snapshot
}

// LogHandler wraps a handler that returns an error into an http.HandlerFunc.
type LogHandler func(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLogHandler sets the LogHandler. (default: httpio.Log)
func WithLogHandler(l LogHandler) GuardOption {
	return func(g *Guard) {
		g.handle = l
	}
}

// WithMetrics records decisions in c.
func WithMetrics(c *metrics.Collector) GuardOption {
	return func(g *Guard) {
		g.metrics = c
	}
}

// WithRetryAfter sets the Retry-After sent while loading. (default: 1s)
func WithRetryAfter(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.retryAfter = d
	}
}

// Guard is HTTP middleware that applies Decide to every request.
type Guard struct {
	session    SessionSource
	flags      PageChecker
	metrics    *metrics.Collector
	handle     LogHandler
	retryAfter time.Duration
}

// NewGuard returns a Guard over session and flags.
func NewGuard(session SessionSource, flags PageChecker, options ...GuardOption) *Guard {
	g := &Guard{
		session:    session,
		flags:      flags,
		handle:     httpio.Log,
		retryAfter: time.Second,
	}
	for _, opt := range options {
		opt(g)
	}

	return g
}

// Require returns middleware that admits signed-in users holding one of rs.
// Without roles any signed-in user is admitted.
func (g *Guard) Require(rs ...roles.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.handle(func(w http.ResponseWriter, r *http.Request) error {
			ctx, span := ccc.StartTrace(r.Context())
			defer span.End()

			snapshot := g.session.Snapshot()
			d := Decide(snapshot, g.flags, Request{Path: r.URL.Path, RequiredRoles: rs})
			g.metrics.Decision(d.Kind.String())
			span.SetAttributes(
				attribute.String("access.decision", d.Kind.String()),
				attribute.String("access.path", r.URL.Path),
				attribute.StringSlice("access.required_roles", roles.Collection(rs).Strings()),
			)

			switch d.Kind {
			case Loading:
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(g.retryAfter)))
				w.WriteHeader(http.StatusServiceUnavailable)

				return nil
			case DenyRedirect:
				logger.FromCtx(ctx).Infof("redirecting %s to %s", r.URL.Path, d.Target)
				http.Redirect(w, r, d.Target, http.StatusSeeOther)

				return nil
			case DenyExplain:
				w.Header().Set("Location", d.Target)

				return httpio.NewEncoder(w).ForbiddenMessage(ctx, d.Reason)
			}

			next.ServeHTTP(w, r.WithContext(sessioninfo.NewCtx(ctx, snapshot)))

			return nil
		})
	}
}

// retryAfterSeconds rounds d up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)

	return max(secs, 1)
}

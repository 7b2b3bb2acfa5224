package featureflag

import (
	"time"

	"github.com/cccteam/websession/metrics"
)

// Option configures a Gate.
type Option func(*Gate)

// WithKnownPages sets the page keys enabled when the flag fetch fails.
func WithKnownPages(pages ...string) Option {
	return func(g *Gate) {
		g.known = pages
	}
}

// WithMetrics records load results in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(g *Gate) {
		g.metrics = c
	}
}

// WithTimeout bounds loads started by Watch. (default: 10s)
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.timeout = d
	}
}

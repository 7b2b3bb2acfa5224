package websession

import (
	"time"

	"github.com/cccteam/websession/metrics"
)

// Option configures a Controller.
type Option func(*Controller)

// WithTokenDecoder sets the token decoder. (default: claims.Unverified)
func WithTokenDecoder(d TokenDecoder) Option {
	return func(c *Controller) {
		c.decoder = d
	}
}

// WithNavigator sets the navigator invoked on logout and expiry.
func WithNavigator(n Navigator) Option {
	return func(c *Controller) {
		c.navigator = n
	}
}

// WithClock sets the time source used for expiry checks. (default: time.Now)
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithMetrics records login outcomes in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithTimeout bounds background requests such as the tenant name lookup. (default: 10s)
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithDefaultLanguage sets the language returned when none was stored. (default: en)
func WithDefaultLanguage(code string) Option {
	return func(c *Controller) {
		c.defaultLanguage = code
	}
}

// Package metrics exposes prometheus counters for the session core. A nil *Collector is valid
// and records nothing.
package metrics

import (
	"github.com/go-playground/errors/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "websession"

// Collector holds the session core counters.
type Collector struct {
	logins      *prometheus.CounterVec
	encryptions *prometheus.CounterVec
	flagLoads   *prometheus.CounterVec
	decisions   *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		encryptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_encryptions_total",
			Help:      "Credential encryption attempts by result.",
		}, []string{"result"}),
		flagLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_flag_loads_total",
			Help:      "Feature flag loads by result.",
		}, []string{"result"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "Access guard decisions by kind.",
		}, []string{"decision"}),
	}

	for _, col := range []prometheus.Collector{c.logins, c.encryptions, c.flagLoads, c.decisions} {
		if err := reg.Register(col); err != nil {
			return nil, errors.Wrap(err, "prometheus.Registerer.Register()")
		}
	}

	return c, nil
}

// Login records a login attempt.
func (c *Collector) Login(ok bool) {
	if c == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	c.logins.WithLabelValues(outcome).Inc()
}

// Encryption records whether a credential left encrypted or fell back to plaintext.
func (c *Collector) Encryption(encrypted bool) {
	if c == nil {
		return
	}
	result := "fallback"
	if encrypted {
		result = "encrypted"
	}
	c.encryptions.WithLabelValues(result).Inc()
}

// FlagLoad records a feature flag load result: "ok", "error" or "stale".
func (c *Collector) FlagLoad(result string) {
	if c == nil {
		return
	}
	c.flagLoads.WithLabelValues(result).Inc()
}

// Decision records an access guard decision.
func (c *Collector) Decision(kind string) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(kind).Inc()
}

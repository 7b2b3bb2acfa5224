package config

import (
	"context"

	"github.com/cccteam/websession"
	"github.com/cccteam/websession/access"
	"github.com/cccteam/websession/api"
	"github.com/cccteam/websession/claims"
	"github.com/cccteam/websession/credential"
	"github.com/cccteam/websession/featureflag"
	"github.com/cccteam/websession/metrics"
	"github.com/go-playground/errors/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Components are the wired parts of the session core.
type Components struct {
	API     *api.Client
	Session *websession.Controller
	Flags   *featureflag.Gate
	Guard   *access.Guard
	Metrics *metrics.Collector
}

// Build validates c and wires the session core. Metrics are registered with reg.
// The gate follows the session from the start; the returned close func stops it and
// releases the storage connection. Restore is left to the caller.
func (c *Config) Build(ctx context.Context, reg prometheus.Registerer, options ...websession.Option) (*Components, func(), error) {
	if err := c.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "Config.Validate()")
	}

	collector, err := metrics.New(reg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "metrics.New()")
	}

	client, err := api.New(c.APIBaseURL, api.WithTimeout(c.HTTPTimeout))
	if err != nil {
		return nil, nil, errors.Wrap(err, "api.New()")
	}

	store, closeStore, err := c.OpenStore(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Config.OpenStore()")
	}

	encOpts := []credential.Option{credential.WithMetrics(collector)}
	if c.RequireEncryption {
		encOpts = append(encOpts, credential.WithRequireEncryption())
	}

	var decoder websession.TokenDecoder = claims.Unverified{}
	if c.JWKSURL != "" {
		decoder = claims.NewRemoteVerifier(ctx, c.JWKSURL)
	}

	options = append([]websession.Option{
		websession.WithTokenDecoder(decoder),
		websession.WithMetrics(collector),
		websession.WithTimeout(c.BackgroundTimeout),
	}, options...)
	session := websession.New(client, store, credential.New(client, encOpts...), options...)

	gate := featureflag.New(client, featureflag.WithMetrics(collector), featureflag.WithTimeout(c.BackgroundTimeout))
	stopWatch := gate.Watch(ctx, session)

	components := &Components{
		API:     client,
		Session: session,
		Flags:   gate,
		Guard:   access.NewGuard(session, gate, access.WithMetrics(collector)),
		Metrics: collector,
	}

	return components, func() {
		stopWatch()
		session.Wait()
		closeStore()
	}, nil
}

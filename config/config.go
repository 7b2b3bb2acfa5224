// Package config loads the session core settings from the environment and an optional .env file.
package config

import (
	"context"
	"net/url"
	"os"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/cccteam/websession/kvstore"
	"github.com/go-playground/errors/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// Storage drivers accepted in WEBSESSION_STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSpanner  = "spanner"
)

// Sealers accepted in WEBSESSION_STORAGE_SEALER.
const (
	SealerNone         = ""
	SealerSecureCookie = "securecookie"
	SealerPaseto       = "paseto"
)

// Config holds the session core settings.
type Config struct {
	APIBaseURL        string        `mapstructure:"api_base_url"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	BackgroundTimeout time.Duration `mapstructure:"background_timeout"`
	RequireEncryption bool          `mapstructure:"require_encryption"`
	JWKSURL           string        `mapstructure:"jwks_url"`
	Storage           Storage       `mapstructure:"storage"`
}

// Storage selects and configures the persisted client state driver.
type Storage struct {
	Driver        string        `mapstructure:"driver"`
	Namespace     string        `mapstructure:"namespace"`
	TableName     string        `mapstructure:"table"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	PostgresURL   string        `mapstructure:"postgres_url"`
	SpannerDB     string        `mapstructure:"spanner_database"`
	Sealer        string        `mapstructure:"sealer"`
	SealKey       string        `mapstructure:"seal_key"`
	SealTTL       time.Duration `mapstructure:"seal_ttl"`
}

// binding maps a setting to its environment variable.
type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{key: "api_base_url", env: "WEBSESSION_API_BASE_URL", def: ""},
	{key: "http_timeout", env: "WEBSESSION_HTTP_TIMEOUT", def: 30 * time.Second},
	{key: "background_timeout", env: "WEBSESSION_BACKGROUND_TIMEOUT", def: 10 * time.Second},
	{key: "require_encryption", env: "WEBSESSION_REQUIRE_ENCRYPTION", def: false},
	{key: "jwks_url", env: "WEBSESSION_JWKS_URL", def: ""},
	{key: "storage.driver", env: "WEBSESSION_STORAGE_DRIVER", def: DriverMemory},
	{key: "storage.namespace", env: "WEBSESSION_STORAGE_NAMESPACE", def: "default"},
	{key: "storage.table", env: "WEBSESSION_STORAGE_TABLE", def: "ClientState"},
	{key: "storage.redis_addr", env: "WEBSESSION_REDIS_ADDR", def: "localhost:6379"},
	{key: "storage.redis_password", env: "WEBSESSION_REDIS_PASSWORD", def: ""},
	{key: "storage.redis_db", env: "WEBSESSION_REDIS_DB", def: 0},
	{key: "storage.postgres_url", env: "WEBSESSION_POSTGRES_URL", def: ""},
	{key: "storage.spanner_database", env: "WEBSESSION_SPANNER_DATABASE", def: ""},
	{key: "storage.sealer", env: "WEBSESSION_STORAGE_SEALER", def: SealerNone},
	{key: "storage.seal_key", env: "WEBSESSION_STORAGE_SEAL_KEY", def: ""},
	{key: "storage.seal_ttl", env: "WEBSESSION_STORAGE_SEAL_TTL", def: 30 * 24 * time.Hour},
}

// Load reads .env files (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values. Empty variables
// keep their default.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "godotenv.Load(%q)", f)
		}
	}

	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, errors.Wrapf(err, "viper.BindEnv(%q)", b.env)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "viper.Unmarshal()")
	}

	return c, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("WEBSESSION_API_BASE_URL is required")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return errors.Wrap(err, "url.Parse()")
	}
	if !u.IsAbs() {
		return errors.Newf("WEBSESSION_API_BASE_URL must be absolute: %q", c.APIBaseURL)
	}
	if c.HTTPTimeout <= 0 || c.BackgroundTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("WEBSESSION_POSTGRES_URL is required for the postgres driver")
		}
	case DriverSpanner:
		if c.Storage.SpannerDB == "" {
			return errors.New("WEBSESSION_SPANNER_DATABASE is required for the spanner driver")
		}
	default:
		return errors.Newf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Storage.Sealer {
	case SealerNone, SealerSecureCookie, SealerPaseto:
	default:
		return errors.Newf("unknown storage sealer %q", c.Storage.Sealer)
	}

	return nil
}

// OpenStore connects the configured storage driver. The returned close func releases the connection.
func (c *Config) OpenStore(ctx context.Context) (kvstore.Store, func(), error) {
	s := c.Storage

	var (
		store   kvstore.Store
		closeFn = func() {}
	)
	switch s.Driver {
	case DriverMemory:
		store = kvstore.NewMemory()
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()

			return nil, nil, errors.Wrap(err, "redis.Client.Ping()")
		}
		store = kvstore.NewRedis(client, s.Namespace)
		closeFn = func() { _ = client.Close() }
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, s.PostgresURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "pgxpool.New()")
		}
		store = kvstore.NewPostgres(pool, s.Namespace, kvstore.WithTableName(s.TableName))
		closeFn = pool.Close
	case DriverSpanner:
		client, err := spanner.NewClient(ctx, s.SpannerDB)
		if err != nil {
			return nil, nil, errors.Wrap(err, "spanner.NewClient()")
		}
		store = kvstore.NewSpanner(client, s.Namespace, kvstore.WithTableName(s.TableName))
		closeFn = client.Close
	default:
		return nil, nil, errors.Newf("unknown storage driver %q", s.Driver)
	}

	var (
		sealer kvstore.Sealer
		err    error
	)
	switch s.Sealer {
	case SealerNone:
		return store, closeFn, nil
	case SealerSecureCookie:
		sealer, err = kvstore.NewSecureCookieSealer(s.SealKey)
	case SealerPaseto:
		sealer, err = kvstore.NewPasetoSealer(s.SealKey, s.SealTTL)
	default:
		err = errors.Newf("unknown storage sealer %q", s.Sealer)
	}
	if err != nil {
		closeFn()

		return nil, nil, err
	}

	return kvstore.NewSealed(store, sealer), closeFn, nil
}

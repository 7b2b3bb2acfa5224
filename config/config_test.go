package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envNames = []string{
	"WEBSESSION_API_BASE_URL",
	"WEBSESSION_JWKS_URL",
	"WEBSESSION_HTTP_TIMEOUT",
	"WEBSESSION_BACKGROUND_TIMEOUT",
	"WEBSESSION_REQUIRE_ENCRYPTION",
	"WEBSESSION_STORAGE_DRIVER",
	"WEBSESSION_STORAGE_NAMESPACE",
	"WEBSESSION_STORAGE_TABLE",
	"WEBSESSION_REDIS_ADDR",
	"WEBSESSION_REDIS_PASSWORD",
	"WEBSESSION_REDIS_DB",
	"WEBSESSION_POSTGRES_URL",
	"WEBSESSION_SPANNER_DATABASE",
	"WEBSESSION_STORAGE_SEALER",
	"WEBSESSION_STORAGE_SEAL_KEY",
	"WEBSESSION_STORAGE_SEAL_TTL",
}

// clearEnv unsets every variable read by Load and restores them when the test ends.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, name := range envNames {
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("os.Unsetenv() error = %v", err)
		}
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		dotenv  string
		want    *Config
		wantErr bool
	}{
		{
			name: "defaults",
			env:  map[string]string{"WEBSESSION_API_BASE_URL": "https://hr.example.com/api"},
			want: &Config{
				APIBaseURL:        "https://hr.example.com/api",
				HTTPTimeout:       30 * time.Second,
				BackgroundTimeout: 10 * time.Second,
				Storage: Storage{
					Driver:    DriverMemory,
					Namespace: "default",
					TableName: "ClientState",
					RedisAddr: "localhost:6379",
					SealTTL:   30 * 24 * time.Hour,
				},
			},
		},
		{
			name: "dotenv with environment override",
			env:  map[string]string{"WEBSESSION_STORAGE_DRIVER": DriverPostgres},
			dotenv: "WEBSESSION_API_BASE_URL=https://hr.example.com/api\n" +
				"WEBSESSION_STORAGE_DRIVER=redis\n" +
				"WEBSESSION_POSTGRES_URL=postgres://localhost/hr\n" +
				"WEBSESSION_BACKGROUND_TIMEOUT=2s\n" +
				"WEBSESSION_REQUIRE_ENCRYPTION=true\n" +
				"WEBSESSION_STORAGE_SEALER=paseto\n",
			want: &Config{
				APIBaseURL:        "https://hr.example.com/api",
				HTTPTimeout:       30 * time.Second,
				BackgroundTimeout: 2 * time.Second,
				RequireEncryption: true,
				Storage: Storage{
					Driver:      DriverPostgres,
					Namespace:   "default",
					TableName:   "ClientState",
					RedisAddr:   "localhost:6379",
					PostgresURL: "postgres://localhost/hr",
					Sealer:      SealerPaseto,
					SealTTL:     30 * 24 * time.Hour,
				},
			},
		},
		{
			name: "empty variables keep defaults",
			env: map[string]string{
				"WEBSESSION_API_BASE_URL":      "https://hr.example.com/api",
				"WEBSESSION_STORAGE_NAMESPACE": "",
				"WEBSESSION_HTTP_TIMEOUT":      "",
				"WEBSESSION_REDIS_DB":          "3",
				"WEBSESSION_STORAGE_SEAL_TTL":  "1h30m",
			},
			want: &Config{
				APIBaseURL:        "https://hr.example.com/api",
				HTTPTimeout:       30 * time.Second,
				BackgroundTimeout: 10 * time.Second,
				Storage: Storage{
					Driver:    DriverMemory,
					Namespace: "default",
					TableName: "ClientState",
					RedisAddr: "localhost:6379",
					RedisDB:   3,
					SealTTL:   90 * time.Minute,
				},
			},
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"WEBSESSION_HTTP_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "invalid bool",
			env:     map[string]string{"WEBSESSION_REQUIRE_ENCRYPTION": "maybe"},
			wantErr: true,
		},
		{
			name:    "invalid int",
			env:     map[string]string{"WEBSESSION_REDIS_DB": "one"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			envFile := filepath.Join(t.TempDir(), ".env")
			if tt.dotenv != "" {
				if err := os.WriteFile(envFile, []byte(tt.dotenv), 0o600); err != nil {
					t.Fatalf("os.WriteFile() error = %v", err)
				}
			}

			got, err := Load(envFile)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			APIBaseURL:        "https://hr.example.com/api",
			HTTPTimeout:       time.Second,
			BackgroundTimeout: time.Second,
			Storage:           Storage{Driver: DriverMemory},
		}
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing base url", modify: func(c *Config) { c.APIBaseURL = "" }, wantErr: true},
		{name: "relative base url", modify: func(c *Config) { c.APIBaseURL = "/api" }, wantErr: true},
		{name: "zero timeout", modify: func(c *Config) { c.BackgroundTimeout = 0 }, wantErr: true},
		{name: "unknown driver", modify: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: true},
		{name: "postgres without url", modify: func(c *Config) { c.Storage.Driver = DriverPostgres }, wantErr: true},
		{name: "spanner without database", modify: func(c *Config) { c.Storage.Driver = DriverSpanner }, wantErr: true},
		{name: "unknown sealer", modify: func(c *Config) { c.Storage.Sealer = "rot13" }, wantErr: true},
		{
			name: "spanner",
			modify: func(c *Config) {
				c.Storage.Driver = DriverSpanner
				c.Storage.SpannerDB = "projects/p/instances/i/databases/d"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := valid()
			tt.modify(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_OpenStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		storage Storage
		wantErr bool
	}{
		{name: "memory", storage: Storage{Driver: DriverMemory}},
		{name: "memory sealed with securecookie", storage: Storage{Driver: DriverMemory, Sealer: SealerSecureCookie}},
		{name: "memory sealed with paseto", storage: Storage{Driver: DriverMemory, Sealer: SealerPaseto, SealTTL: time.Hour}},
		{name: "bad seal key", storage: Storage{Driver: DriverMemory, Sealer: SealerSecureCookie, SealKey: "c2hvcnQ="}, wantErr: true},
		{name: "unknown driver", storage: Storage{Driver: "sqlite"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			c := &Config{Storage: tt.storage}
			store, closeFn, err := c.OpenStore(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Config.OpenStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer closeFn()

			if err := store.Set(ctx, "language", "en"); err != nil {
				t.Fatalf("Store.Set() error = %v", err)
			}
			if got, ok, err := store.Get(ctx, "language"); err != nil || !ok || got != "en" {
				t.Errorf("Store.Get() = (%q, %v, %v), want (%q, true, nil)", got, ok, err, "en")
			}
		})
	}
}

package postgres

import (
	"testing"
	"time"

	"github.com/cccteam/websession/kvstore/internal/dbtype"
	"github.com/go-playground/errors/v5"
	"github.com/google/go-cmp/cmp"
)

const (
	schemaURL = "file://../../../schema/postgresql/migrations"
	seedURL   = "file://testdata/client_state"
)

func TestClient_FullMigration(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db, err := prepareDatabase(ctx, t, schemaURL)
	if err != nil {
		t.Fatalf("prepareDatabase() error = %v", err)
	}

	if err := db.MigrateDown(schemaURL); err != nil {
		t.Fatalf("db.MigrateDown() error = %v, wantErr %v", err, false)
	}
}

func TestStateStorageDriver_State(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		namespace    string
		key          string
		sourceURL    []string
		want         *dbtype.ClientState
		wantNotFound bool
		wantErr      bool
	}{
		{
			name:      "missing table",
			namespace: "browser-1",
			key:       "token",
			wantErr:   true,
		},
		{
			name:         "missing key",
			namespace:    "browser-1",
			key:          "language",
			sourceURL:    []string{schemaURL, seedURL},
			wantNotFound: true,
			wantErr:      true,
		},
		{
			name:         "key of another namespace",
			namespace:    "browser-2",
			key:          "selectedCompanyId",
			sourceURL:    []string{schemaURL, seedURL},
			wantNotFound: true,
			wantErr:      true,
		},
		{
			name:      "success",
			namespace: "browser-1",
			key:       "selectedCompanyId",
			sourceURL: []string{schemaURL, seedURL},
			want: &dbtype.ClientState{
				Namespace: "browser-1",
				Key:       "selectedCompanyId",
				Value:     "42",
				UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			db, err := prepareDatabase(ctx, t, tt.sourceURL...)
			if err != nil {
				t.Fatalf("prepareDatabase() error = %v", err)
			}
			d := NewStateStorageDriver(db.Pool)

			got, err := d.State(ctx, tt.namespace, tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("StateStorageDriver.State() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, dbtype.ErrNotFound); got != tt.wantNotFound {
				t.Errorf("errors.Is(err, ErrNotFound) = %v, want %v", got, tt.wantNotFound)
			}
			if got != nil {
				got.UpdatedAt = got.UpdatedAt.UTC()
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("StateStorageDriver.State() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStateStorageDriver_UpsertState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		namespace      string
		key            string
		value          string
		sourceURL      []string
		wantErr        bool
		preAssertions  []string
		postAssertions []string
	}{
		{
			name:      "missing table",
			namespace: "browser-1",
			key:       "token",
			value:     "x",
			wantErr:   true,
		},
		{
			name:      "insert",
			namespace: "browser-2",
			key:       "language",
			value:     "fr",
			sourceURL: []string{schemaURL, seedURL},
			preAssertions: []string{
				`SELECT COUNT(*) = 0 FROM "ClientState" WHERE "Namespace" = 'browser-2' AND "Key" = 'language'`,
			},
			postAssertions: []string{
				`SELECT COUNT(*) = 1 FROM "ClientState" WHERE "Namespace" = 'browser-2' AND "Key" = 'language' AND "Value" = 'fr'`,
				`SELECT COUNT(*) = 4 FROM "ClientState"`,
			},
		},
		{
			name:      "update",
			namespace: "browser-1",
			key:       "selectedCompanyId",
			value:     "7",
			sourceURL: []string{schemaURL, seedURL},
			preAssertions: []string{
				`SELECT COUNT(*) = 1 FROM "ClientState" WHERE "Namespace" = 'browser-1' AND "Key" = 'selectedCompanyId' AND "Value" = '42'`,
			},
			postAssertions: []string{
				`SELECT COUNT(*) = 1 FROM "ClientState" WHERE "Namespace" = 'browser-1' AND "Key" = 'selectedCompanyId' AND "Value" = '7'`,
				`SELECT COUNT(*) = 3 FROM "ClientState"`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			db, err := prepareDatabase(ctx, t, tt.sourceURL...)
			if err != nil {
				t.Fatalf("prepareDatabase() error = %v", err)
			}
			d := NewStateStorageDriver(db.Pool)

			runAssertions(ctx, t, db.Pool, tt.preAssertions)

			if err := d.UpsertState(ctx, tt.namespace, tt.key, tt.value); (err != nil) != tt.wantErr {
				t.Fatalf("StateStorageDriver.UpsertState() error = %v, wantErr %v", err, tt.wantErr)
			}

			runAssertions(ctx, t, db.Pool, tt.postAssertions)
		})
	}
}

func TestStateStorageDriver_DeleteState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		namespace      string
		key            string
		sourceURL      []string
		wantErr        bool
		postAssertions []string
	}{
		{
			name:      "missing table",
			namespace: "browser-1",
			key:       "token",
			wantErr:   true,
		},
		{
			name:      "missing key",
			namespace: "browser-1",
			key:       "language",
			sourceURL: []string{schemaURL, seedURL},
			postAssertions: []string{
				`SELECT COUNT(*) = 3 FROM "ClientState"`,
			},
		},
		{
			name:      "delete",
			namespace: "browser-1",
			key:       "token",
			sourceURL: []string{schemaURL, seedURL},
			postAssertions: []string{
				`SELECT COUNT(*) = 0 FROM "ClientState" WHERE "Namespace" = 'browser-1' AND "Key" = 'token'`,
				`SELECT COUNT(*) = 1 FROM "ClientState" WHERE "Namespace" = 'browser-2' AND "Key" = 'token'`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			db, err := prepareDatabase(ctx, t, tt.sourceURL...)
			if err != nil {
				t.Fatalf("prepareDatabase() error = %v", err)
			}
			d := NewStateStorageDriver(db.Pool)

			if err := d.DeleteState(ctx, tt.namespace, tt.key); (err != nil) != tt.wantErr {
				t.Fatalf("StateStorageDriver.DeleteState() error = %v, wantErr %v", err, tt.wantErr)
			}

			runAssertions(ctx, t, db.Pool, tt.postAssertions)
		})
	}
}

func TestStateStorageDriver_SetTableName(t *testing.T) {
	t.Parallel()

	d := NewStateStorageDriver(nil)
	d.SetTableName("BrowserState")
	if d.tableName != "BrowserState" {
		t.Errorf("tableName = %q, want %q", d.tableName, "BrowserState")
	}
}

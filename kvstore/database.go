package kvstore

import (
	"context"

	"cloud.google.com/go/spanner"
	"github.com/cccteam/ccc"
	"github.com/cccteam/websession/kvstore/internal/dbtype"
	"github.com/cccteam/websession/kvstore/internal/postgres"
	ispanner "github.com/cccteam/websession/kvstore/internal/spanner"
	"github.com/go-playground/errors/v5"
)

var (
	_ db = (*postgres.StateStorageDriver)(nil)
	_ db = (*ispanner.StateStorageDriver)(nil)

	_ Store = (*Database)(nil)
)

// db defines the database operations used by Database.
type db interface {
	// State returns the row for namespace and key, or dbtype.ErrNotFound.
	State(ctx context.Context, namespace, key string) (*dbtype.ClientState, error)
	// UpsertState inserts or replaces the value for namespace and key.
	UpsertState(ctx context.Context, namespace, key, value string) error
	// DeleteState removes the value for namespace and key.
	DeleteState(ctx context.Context, namespace, key string) error
	// SetTableName sets the name of the client state table.
	SetTableName(name string)
}

// DatabaseOption configures a Database store.
type DatabaseOption func(*Database)

// WithTableName sets the name of the client state table. (default: ClientState)
func WithTableName(name string) DatabaseOption {
	return func(d *Database) {
		d.db.SetTableName(name)
	}
}

// Database is a Store backed by a SQL database. Each client keeps its state under its own namespace.
type Database struct {
	db        db
	namespace string
}

// NewPostgres returns a Store for namespace backed by PostgreSQL.
func NewPostgres(conn postgres.Queryer, namespace string, options ...DatabaseOption) *Database {
	return newDatabase(postgres.NewStateStorageDriver(conn), namespace, options)
}

// NewSpanner returns a Store for namespace backed by Spanner.
func NewSpanner(client *spanner.Client, namespace string, options ...DatabaseOption) *Database {
	return newDatabase(ispanner.NewStateStorageDriver(client), namespace, options)
}

func newDatabase(driver db, namespace string, options []DatabaseOption) *Database {
	d := &Database{
		db:        driver,
		namespace: namespace,
	}
	for _, opt := range options {
		opt(d)
	}

	return d
}

// Get returns the value for key.
func (d *Database) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	row, err := d.db.State(ctx, d.namespace, key)
	if err != nil {
		if errors.Is(err, dbtype.ErrNotFound) {
			return "", false, nil
		}

		return "", false, errors.Wrap(err, "db.State()")
	}

	return row.Value, true, nil
}

// Set stores value under key.
func (d *Database) Set(ctx context.Context, key, value string) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	if err := d.db.UpsertState(ctx, d.namespace, key, value); err != nil {
		return errors.Wrap(err, "db.UpsertState()")
	}

	return nil
}

// Delete removes key.
func (d *Database) Delete(ctx context.Context, key string) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	if err := d.db.DeleteState(ctx, d.namespace, key); err != nil {
		return errors.Wrap(err, "db.DeleteState()")
	}

	return nil
}

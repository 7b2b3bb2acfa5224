// Package postgres implements the client state storage driver for PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cccteam/ccc"
	"github.com/cccteam/websession/kvstore/internal/dbtype"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/go-playground/errors/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryer is the subset of pgx used by the driver. *pgxpool.Pool and pgx.Tx satisfy it.
type Queryer interface {
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

// StateStorageDriver represents the client state storage implementation for PostgreSQL.
type StateStorageDriver struct {
	conn      Queryer
	tableName string
}

// NewStateStorageDriver creates a new StateStorageDriver
func NewStateStorageDriver(conn Queryer) *StateStorageDriver {
	return &StateStorageDriver{
		conn:      conn,
		tableName: "ClientState",
	}
}

// SetTableName sets the name of the client state table.
func (d *StateStorageDriver) SetTableName(name string) {
	d.tableName = name
}

// State returns the row for namespace and key
func (d *StateStorageDriver) State(ctx context.Context, namespace, key string) (*dbtype.ClientState, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	query := fmt.Sprintf(`
		SELECT
			"Namespace", "Key", "Value", "UpdatedAt"
		FROM "%s"
		WHERE "Namespace" = $1 AND "Key" = $2
	`, d.tableName)

	row := &dbtype.ClientState{}
	if err := pgxscan.Get(ctx, d.conn, row, query, namespace, key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dbtype.ErrNotFound
		}

		return nil, errors.Wrapf(err, "failed to scan row for %s/%s", namespace, key)
	}

	return row, nil
}

// UpsertState inserts or replaces the value for namespace and key
func (d *StateStorageDriver) UpsertState(ctx context.Context, namespace, key, value string) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	query := fmt.Sprintf(`
		INSERT INTO "%s"
			("Namespace", "Key", "Value", "UpdatedAt")
		VALUES
			($1, $2, $3, $4)
		ON CONFLICT ("Namespace", "Key")
		DO UPDATE SET "Value" = EXCLUDED."Value", "UpdatedAt" = EXCLUDED."UpdatedAt"
	`, d.tableName)

	if _, err := d.conn.Exec(ctx, query, namespace, key, value, time.Now()); err != nil {
		return errors.Wrapf(err, "failed to upsert %s/%s", namespace, key)
	}

	return nil
}

// DeleteState removes the value for namespace and key
func (d *StateStorageDriver) DeleteState(ctx context.Context, namespace, key string) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	query := fmt.Sprintf(`
		DELETE FROM "%s"
		WHERE "Namespace" = $1 AND "Key" = $2`, d.tableName)

	if _, err := d.conn.Exec(ctx, query, namespace, key); err != nil {
		return errors.Wrapf(err, "failed to delete %s/%s", namespace, key)
	}

	return nil
}

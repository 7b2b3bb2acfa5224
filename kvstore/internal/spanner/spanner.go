// Package spanner provides the client state storage driver for Spanner.
package spanner

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/cccteam/ccc"
	"github.com/cccteam/spxscan"
	"github.com/cccteam/websession/kvstore/internal/dbtype"
	"github.com/go-playground/errors/v5"
	"google.golang.org/grpc/codes"
)

// StateStorageDriver represents the client state storage implementation for Spanner.
type StateStorageDriver struct {
	spanner   *spanner.Client
	tableName string
}

// NewStateStorageDriver creates a new StateStorageDriver
func NewStateStorageDriver(client *spanner.Client) *StateStorageDriver {
	return &StateStorageDriver{
		spanner:   client,
		tableName: "ClientState",
	}
}

// SetTableName sets the name of the client state table.
func (s *StateStorageDriver) SetTableName(name string) {
	s.tableName = name
}

// State returns the row for namespace and key
func (s *StateStorageDriver) State(ctx context.Context, namespace, key string) (*dbtype.ClientState, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	stmt := spanner.NewStatement(fmt.Sprintf(`
		SELECT
			Namespace,
			Key,
			Value,
			UpdatedAt
		FROM %s
		WHERE Namespace = @namespace AND Key = @key
	`, s.tableName))
	stmt.Params["namespace"] = namespace
	stmt.Params["key"] = key

	row := &dbtype.ClientState{}
	if err := spxscan.Get(ctx, s.spanner.Single(), row, stmt); err != nil {
		if errors.Is(err, spxscan.ErrNotFound) {
			return nil, dbtype.ErrNotFound
		}

		return nil, errors.Wrapf(err, "failed to scan row for %s/%s", namespace, key)
	}

	return row, nil
}

// UpsertState inserts or replaces the value for namespace and key
func (s *StateStorageDriver) UpsertState(ctx context.Context, namespace, key, value string) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	mutation, err := spanner.InsertOrUpdateStruct(s.tableName, &dbtype.ClientState{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "spanner.InsertOrUpdateStruct()")
	}

	if _, err := s.spanner.Apply(ctx, []*spanner.Mutation{mutation}); err != nil {
		return errors.Wrap(err, "spanner.Client.Apply()")
	}

	return nil
}

// DeleteState removes the value for namespace and key
func (s *StateStorageDriver) DeleteState(ctx context.Context, namespace, key string) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	mutation := spanner.Delete(s.tableName, spanner.Key{namespace, key})
	if _, err := s.spanner.Apply(ctx, []*spanner.Mutation{mutation}); err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil
		}

		return errors.Wrap(err, "spanner.Client.Apply()")
	}

	return nil
}

// Package dbtype defines the row types shared by the database drivers.
package dbtype

import (
	"time"

	"github.com/go-playground/errors/v5"
)

// ErrNotFound is returned by the drivers when a key does not exist.
var ErrNotFound = errors.New("client state not found")

// ClientState is one persisted key of one client namespace.
type ClientState struct {
	Namespace string    `db:"Namespace" spanner:"Namespace"`
	Key       string    `db:"Key" spanner:"Key"`
	Value     string    `db:"Value" spanner:"Value"`
	UpdatedAt time.Time `db:"UpdatedAt" spanner:"UpdatedAt"`
}

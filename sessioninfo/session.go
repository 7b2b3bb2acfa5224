package sessioninfo

import (
	"context"
	"fmt"
	"net/http"
)

// ctxKey is a type for storing values in the request context
type ctxKey string

// CtxSnapshot is the key used to store the Snapshot in the context.
const CtxSnapshot ctxKey = "sessionSnapshot"

// NewCtx returns a copy of ctx carrying snapshot.
func NewCtx(ctx context.Context, snapshot Snapshot) context.Context {
	return context.WithValue(ctx, CtxSnapshot, snapshot)
}

// FromRequest returns the session snapshot from the request context.
func FromRequest(r *http.Request) Snapshot {
	return FromCtx(r.Context())
}

// FromCtx returns the session snapshot from the context.
func FromCtx(ctx context.Context) Snapshot {
	snapshot, ok := ctx.Value(CtxSnapshot).(Snapshot)
	if !ok {
		panic(fmt.Sprintf("failed to find %s in request context", CtxSnapshot))
	}

	return snapshot
}

// UserFromCtx returns the signed-in user from the context, or nil when the session is not authenticated.
func UserFromCtx(ctx context.Context) *User {
	return FromCtx(ctx).User
}

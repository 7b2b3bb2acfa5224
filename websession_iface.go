package websession

import (
	"context"

	"github.com/cccteam/websession/api"
	"github.com/cccteam/websession/claims"
	"github.com/cccteam/websession/credential"
)

var (
	_ Backend      = &api.Client{}
	_ Encryptor    = &credential.Encryptor{}
	_ TokenDecoder = claims.Unverified{}
	_ TokenDecoder = &claims.Verifier{}
)

// Backend is the part of the REST API the session core calls.
type Backend interface {
	// SetToken arms the bearer token sent with every request.
	SetToken(token string)
	// ClearToken disarms the bearer token.
	ClearToken()
	Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error)
	Company(ctx context.Context, id int64) (*api.Company, error)
	Profile(ctx context.Context) (*api.Profile, error)
}

// Encryptor transforms the password before it is sent.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext string) (credential.Result, error)
}

// TokenDecoder extracts the claims of a session token.
type TokenDecoder interface {
	Decode(ctx context.Context, raw string) (*claims.Claims, error)
}

// Navigator moves the user to the login view.
type Navigator interface {
	ToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context)

// ToLogin calls f(ctx).
func (f NavigatorFunc) ToLogin(ctx context.Context) {
	f(ctx)
}

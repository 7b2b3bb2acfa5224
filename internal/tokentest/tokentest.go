// Package tokentest builds session tokens for tests.
package tokentest

import (
	"testing"
	"time"

	"github.com/cccteam/websession/claims"
	"github.com/cccteam/websession/roles"
	"github.com/golang-jwt/jwt/v5"
)

const signingKey = "tokentest-signing-key"

// Options describes the token to build.
type Options struct {
	UserID      int64
	Email       string
	FirstName   string
	LastName    string
	Role        roles.Role
	CompanyID   *int64
	CompanyName string
	// ExpiresIn is relative to now; zero omits the expiry claim.
	ExpiresIn time.Duration
}

// Token returns a signed token carrying the given claims.
func Token(t testing.TB, o Options) string {
	t.Helper()

	c := &claims.Claims{
		UserID:      o.UserID,
		Email:       o.Email,
		FirstName:   o.FirstName,
		LastName:    o.LastName,
		Role:        o.Role,
		CompanyID:   o.CompanyID,
		CompanyName: o.CompanyName,
	}
	if o.ExpiresIn != 0 {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(o.ExpiresIn))
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("jwt.Token.SignedString() error = %v", err)
	}

	return raw
}

// Valid returns a token for role that expires in an hour.
func Valid(t testing.TB, role roles.Role) string {
	t.Helper()

	return Token(t, Options{
		UserID:    7,
		Email:     "jane.doe@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      role,
		ExpiresIn: time.Hour,
	})
}

// Expired returns a token for role that expired an hour ago.
func Expired(t testing.TB, role roles.Role) string {
	t.Helper()

	return Token(t, Options{
		UserID:    7,
		Email:     "jane.doe@example.com",
		Role:      role,
		ExpiresIn: -time.Hour,
	})
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

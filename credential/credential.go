// Package credential encrypts passwords with the backend's public key before they are submitted.
//
// Encryption is best-effort: when the key cannot be obtained or encryption fails the plaintext is
// returned unchanged and Result.Encrypted is false. Callers must not assume confidentiality was
// achieved unless Encrypted is true.
package credential

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"sync"

	"github.com/cccteam/ccc"
	"github.com/cccteam/logger"
	"github.com/cccteam/websession/metrics"
	"github.com/go-playground/errors/v5"
)

var (
	// ErrEmptyPlaintext is returned when Encrypt is called without a value.
	ErrEmptyPlaintext = errors.New("credential: plaintext is empty")
	// ErrEncryptionUnavailable is returned instead of a plaintext fallback when encryption is required.
	ErrEncryptionUnavailable = errors.New("credential: encryption unavailable")
)

// KeySource provides the base64 encoded SPKI public key.
type KeySource interface {
	PublicKey(ctx context.Context) (string, error)
}

// Result is the outcome of Encrypt. Value is base64 ciphertext when Encrypted is true,
// otherwise the original plaintext.
type Result struct {
	Value     string
	Encrypted bool
}

// Option configures an Encryptor.
type Option func(*Encryptor)

// WithRequireEncryption makes Encrypt fail with ErrEncryptionUnavailable instead of falling back to plaintext.
func WithRequireEncryption() Option {
	return func(e *Encryptor) {
		e.require = true
	}
}

// WithMetrics records encryption outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Encryptor) {
		e.metrics = c
	}
}

// Encryptor encrypts credentials with RSA-OAEP (SHA-256). The public key is fetched on first use
// and cached for the lifetime of the Encryptor; a failed fetch is retried on the next call.
type Encryptor struct {
	source  KeySource
	require bool
	metrics *metrics.Collector

	mu  sync.Mutex
	key *rsa.PublicKey
}

// New returns an Encryptor that obtains its key from source.
func New(source KeySource, options ...Option) *Encryptor {
	e := &Encryptor{source: source}
	for _, opt := range options {
		opt(e)
	}

	return e
}

// Encrypt encrypts plaintext. The only errors returned are ErrEmptyPlaintext and, when encryption
// is required, ErrEncryptionUnavailable.
func (e *Encryptor) Encrypt(ctx context.Context, plaintext string) (Result, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	if plaintext == "" {
		return Result{}, ErrEmptyPlaintext
	}

	key, err := e.publicKey(ctx)
	if err != nil {
		return e.fallback(ctx, plaintext, errors.Wrap(err, "Encryptor.publicKey()"))
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, key, []byte(plaintext), nil)
	if err != nil {
		return e.fallback(ctx, plaintext, errors.Wrap(err, "rsa.EncryptOAEP()"))
	}

	e.metrics.Encryption(true)

	return Result{Value: base64.StdEncoding.EncodeToString(ciphertext), Encrypted: true}, nil
}

func (e *Encryptor) fallback(ctx context.Context, plaintext string, cause error) (Result, error) {
	e.metrics.Encryption(false)

	if e.require {
		logger.FromCtx(ctx).Error(cause)

		return Result{}, ErrEncryptionUnavailable
	}

	logger.FromCtx(ctx).Warnf("credential encryption unavailable, submitting plaintext: %s", cause)

	return Result{Value: plaintext}, nil
}

func (e *Encryptor) publicKey(ctx context.Context) (*rsa.PublicKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.key != nil {
		return e.key, nil
	}

	encoded, err := e.source.PublicKey(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "KeySource.PublicKey()")
	}

	key, err := ParsePublicKey(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "ParsePublicKey()")
	}
	e.key = key

	return key, nil
}

// ParsePublicKey parses a base64 encoded SPKI (PKIX, DER) RSA public key. PEM armor is tolerated.
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	var der []byte
	if block, _ := pem.Decode([]byte(encoded)); block != nil {
		der = block.Bytes
	} else {
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return nil, errors.Wrap(err, "base64.StdEncoding.DecodeString()")
		}
		der = b
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "x509.ParsePKIXPublicKey()")
	}

	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.Newf("public key is %T, want *rsa.PublicKey", pub)
	}

	return key, nil
}

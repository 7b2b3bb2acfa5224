package kvstore

import (
	"context"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/cccteam/logger"
	"github.com/go-playground/errors/v5"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

var (
	_ Store  = (*Sealed)(nil)
	_ Sealer = (*SecureCookieSealer)(nil)
	_ Sealer = (*PasetoSealer)(nil)
)

// Sealer protects values at rest. The key name is bound to the sealed value
// so a value cannot be moved to another key.
type Sealer interface {
	Seal(key, value string) (string, error)
	Open(key, sealed string) (string, error)
}

// Sealed wraps a Store and seals every value before it is written.
type Sealed struct {
	store  Store
	sealer Sealer
}

// NewSealed returns a Store that seals values written to store.
func NewSealed(store Store, sealer Sealer) *Sealed {
	return &Sealed{
		store:  store,
		sealer: sealer,
	}
}

// Get returns the opened value for key. A value that fails to open is removed
// and reported as missing.
func (s *Sealed) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", false, errors.Wrap(err, "Store.Get()")
	}
	if !ok {
		return "", false, nil
	}

	value, err := s.sealer.Open(key, sealed)
	if err != nil {
		logger.FromCtx(ctx).Warnf("discarding unreadable value for %q: %v", key, err)
		if err := s.store.Delete(ctx, key); err != nil {
			return "", false, errors.Wrap(err, "Store.Delete()")
		}

		return "", false, nil
	}

	return value, true, nil
}

// Set seals value and stores it under key.
func (s *Sealed) Set(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.Seal(key, value)
	if err != nil {
		return errors.Wrap(err, "Sealer.Seal()")
	}

	if err := s.store.Set(ctx, key, sealed); err != nil {
		return errors.Wrap(err, "Store.Set()")
	}

	return nil
}

// Delete removes key.
func (s *Sealed) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return errors.Wrap(err, "Store.Delete()")
	}

	return nil
}

// SecureCookieSealer seals values with gorilla/securecookie (AES-CTR + HMAC-SHA256).
type SecureCookieSealer struct {
	codec *securecookie.SecureCookie
}

// NewSecureCookieSealer derives the hash and block keys from a base64 encoded
// master key of at least 96 bytes. An empty key generates a random one, which
// makes sealed values unreadable after a restart.
func NewSecureCookieSealer(masterKey string) (*SecureCookieSealer, error) {
	if masterKey == "" {
		rKey := securecookie.GenerateRandomKey(96)
		if rKey == nil {
			return nil, errors.New("failed to generate random key")
		}
		masterKey = base64.StdEncoding.EncodeToString(rKey)
	}

	k, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, errors.Wrap(err, "base64.StdEncoding.DecodeString()")
	}
	if len(k) < 96 {
		return nil, errors.New("master key too short. Expect minimum of 96 bytes. (128 bytes when base64 encoded)")
	}

	hSaltIndex := int(k[55] % 4)
	hIndex := int(k[7]%4 + 12)
	saltIndex := int(k[73]%4 + 48)
	index := int(k[37]%4 + 60)

	hash, err := pbkdf2.Key(sha256.New, string(k[hIndex:hIndex+32]), k[hSaltIndex:hSaltIndex+8], 4356+hIndex*saltIndex, 64)
	if err != nil {
		return nil, errors.Wrap(err, "pbkdf2.Key()")
	}

	block, err := pbkdf2.Key(sha256.New, string(k[index:index+32]), k[saltIndex:saltIndex+8], 4491+(hSaltIndex+1)*index, 32)
	if err != nil {
		return nil, errors.Wrap(err, "pbkdf2.Key()")
	}

	codec := securecookie.New(hash, block)
	codec.MaxAge(0)

	return &SecureCookieSealer{codec: codec}, nil
}

// Seal encodes value under the key name.
func (s *SecureCookieSealer) Seal(key, value string) (string, error) {
	encoded, err := s.codec.Encode(key, value)
	if err != nil {
		return "", errors.Wrap(err, "securecookie.Encode()")
	}

	return encoded, nil
}

// Open decodes a value produced by Seal for the same key name.
func (s *SecureCookieSealer) Open(key, sealed string) (string, error) {
	var value string
	if err := s.codec.Decode(key, sealed, &value); err != nil {
		return "", errors.Wrap(err, "securecookie.Decode()")
	}

	return value, nil
}

const pasetoValueClaim = "value"

// PasetoSealer seals values as PASETO v4 local tokens with the key name as implicit assertion.
type PasetoSealer struct {
	key paseto.V4SymmetricKey
	ttl time.Duration
}

// NewPasetoSealer derives a v4 symmetric key from a base64 encoded master key
// using HKDF-SHA256. Sealed values expire after ttl.
func NewPasetoSealer(masterKey string, ttl time.Duration) (*PasetoSealer, error) {
	if masterKey == "" {
		rKey := make([]byte, 32)
		if _, err := rand.Read(rKey); err != nil {
			return nil, errors.New("failed to generate random key")
		}
		masterKey = base64.StdEncoding.EncodeToString(rKey)
	}

	keyMaterial, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, errors.Wrap(err, "base64.StdEncoding.DecodeString()")
	}

	hkdfReader := hkdf.New(sha256.New, keyMaterial, []byte("websession-kvstore-key-salt"), nil)
	derivedKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, derivedKey); err != nil {
		return nil, errors.Wrap(err, "failed to derive key using HKDF")
	}

	key, err := paseto.V4SymmetricKeyFromBytes(derivedKey)
	if err != nil {
		return nil, errors.Wrap(err, "paseto.V4SymmetricKeyFromBytes()")
	}

	return &PasetoSealer{key: key, ttl: ttl}, nil
}

// Seal encrypts value under the key name.
func (p *PasetoSealer) Seal(key, value string) (string, error) {
	token := paseto.NewToken()
	token.SetString(pasetoValueClaim, value)
	token.SetIssuedAt(time.Now())
	token.SetExpiration(time.Now().Add(p.ttl))

	return token.V4Encrypt(p.key, []byte(key)), nil
}

// Open decrypts a value produced by Seal for the same key name.
func (p *PasetoSealer) Open(key, sealed string) (string, error) {
	token, err := paseto.NewParser().ParseV4Local(p.key, sealed, []byte(key))
	if err != nil {
		return "", errors.Wrap(err, "paseto.ParseV4Local()")
	}

	value, err := token.GetString(pasetoValueClaim)
	if err != nil {
		return "", errors.Wrap(err, "paseto.Token.GetString()")
	}

	return value, nil
}

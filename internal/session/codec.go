// Package session turns a [models.SessionCredential] into an opaque token that the browser carries
// between the callback page and the playlist request, and back again.
//
// Tokens are AES-256-GCM sealed JSON, hex encoded so they survive a URL query string untouched.
// Each token has its own random nonce, prepended to the ciphertext.
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/teremich/spotify-true-random/internal/models"
	"github.com/teremich/spotify-true-random/internal/shared"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Codec encodes and decodes session tokens. It is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a codec for a 32 byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: session key must be %d bytes, got %d", shared.ErrInvalidConfig, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// GenerateKey returns a fresh random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	return key, nil
}

// KeyFromConfig decodes the configured hex key. An empty value yields a generated key,
// reported through ephemeral so the caller can warn that tokens will not survive a restart.
func KeyFromConfig(hexKey string) (key []byte, ephemeral bool, err error) {
	if hexKey == "" {
		key, err = GenerateKey()
		return key, true, err
	}

	key, err = hex.DecodeString(hexKey)
	if err != nil || len(key) != KeySize {
		return nil, false, fmt.Errorf("%w: session key must be %d hex characters", shared.ErrInvalidConfig, KeySize*2)
	}
	return key, false, nil
}

// Encode seals the credential into a hex token.
func (c *Codec) Encode(cred models.SessionCredential) (string, error) {
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(sealed), nil
}

// Decode opens a token produced by [Codec.Encode].
//
// Every failure (bad hex, truncation, tampering, a token sealed with another key) wraps [shared.ErrTokenDecode].
func (c *Codec) Decode(token string) (models.SessionCredential, error) {
	var cred models.SessionCredential

	sealed, err := hex.DecodeString(token)
	if err != nil {
		return cred, fmt.Errorf("%w: not hex encoded", shared.ErrTokenDecode)
	}

	ns := c.aead.NonceSize()
	if len(sealed) < ns+c.aead.Overhead() {
		return cred, fmt.Errorf("%w: token too short", shared.ErrTokenDecode)
	}

	plaintext, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return cred, fmt.Errorf("%w: authentication failed", shared.ErrTokenDecode)
	}

	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return cred, fmt.Errorf("%w: %v", shared.ErrTokenDecode, err)
	}
	return cred, nil
}

// Package vault derives a symmetric key from a master secret and seals
// secrets with AES-256-GCM. It performs no I/O and keeps no state between calls.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultSalt is the application-wide salt used when a deployment does not set one.
	DefaultSalt       = "4BGEdKWWwHuUvfrXjqu5iKCEQbo1aG7Mu9difS36UXzmtm9TRj0Y2oLMIkqep40q"
	DefaultIterations = 100000
	MinIterations     = 100000

	keyLength = 32
	nonceSize = 12
	tagSize   = 16
)

var (
	ErrCrypto           = errors.New("crypto_error")
	ErrInvalidIteration = errors.New("invalid_kdf_iterations")
)

type Config struct {
	Salt       string
	Iterations int
}

// Vault holds only the key-derivation parameters.
type Vault struct {
	salt       []byte
	iterations int
}

func New(cfg Config) (*Vault, error) {
	salt := cfg.Salt
	if strings.TrimSpace(salt) == "" {
		salt = DefaultSalt
	}
	iterations := cfg.Iterations
	if iterations == 0 {
		iterations = DefaultIterations
	}
	if iterations < MinIterations {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIteration, iterations)
	}
	return &Vault{salt: []byte(salt), iterations: iterations}, nil
}

// Default returns a vault using the built-in salt and iteration count.
func Default() *Vault {
	return &Vault{salt: []byte(DefaultSalt), iterations: DefaultIterations}
}

// Encrypt returns base64(nonce || ciphertext || tag).
func (v *Vault) Encrypt(plaintext, masterSecret string) (string, error) {
	gcm, err := v.aead(masterSecret)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generate nonce", ErrCrypto)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	blob := make([]byte, 0, len(nonce)+len(sealed))
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

func (v *Vault) Decrypt(blob, masterSecret string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return "", fmt.Errorf("%w: malformed blob", ErrCrypto)
	}
	if len(raw) < nonceSize+tagSize {
		return "", fmt.Errorf("%w: blob too short", ErrCrypto)
	}

	gcm, err := v.aead(masterSecret)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrCrypto)
	}
	return string(plaintext), nil
}

func (v *Vault) aead(masterSecret string) (cipher.AEAD, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: vault not configured", ErrCrypto)
	}
	if masterSecret == "" {
		return nil, fmt.Errorf("%w: master secret is empty", ErrCrypto)
	}
	key := pbkdf2.Key([]byte(masterSecret), v.salt, v.iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: derive cipher", ErrCrypto)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: derive cipher", ErrCrypto)
	}
	return gcm, nil
}

// Encrypt seals plaintext with the default vault parameters.
func Encrypt(plaintext, masterSecret string) (string, error) {
	return Default().Encrypt(plaintext, masterSecret)
}

// Decrypt opens a blob sealed with the default vault parameters.
func Decrypt(blob, masterSecret string) (string, error) {
	return Default().Decrypt(blob, masterSecret)
}

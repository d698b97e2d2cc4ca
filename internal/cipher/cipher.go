// Package cipher encrypts individual text fields before they reach storage.
//
// Values are sealed with AES-256-GCM under a key derived from the process
// secret with HKDF-SHA256. Every call to Encrypt draws a fresh nonce, so the
// same plaintext never produces the same ciphertext twice. The encoded form is
// base64url(nonce || sealed).
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize   = 32
	nonceSize = 12
	hkdfInfo  = "portfolio-backend/message-fields/v1"
)

var (
	// ErrEmptySecret is returned by New when no secret is configured.
	ErrEmptySecret = errors.New("cipher: encryption secret is empty")
	// ErrMalformedCiphertext is returned when a value cannot be decoded or
	// fails authentication, e.g. it was sealed under a different key.
	ErrMalformedCiphertext = errors.New("cipher: malformed ciphertext")
)

// Cipher seals and opens field values. It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New derives the field key from secret and returns a ready Cipher.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("cipher: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: new block: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: new gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext. An empty value is returned unchanged.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cipher: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. An empty value is returned unchanged.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return ciphertext, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}

	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(plain), nil
}

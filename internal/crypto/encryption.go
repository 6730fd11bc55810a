// Package crypto provides the symmetric string encryption used to mint
// opaque identifiers.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidCiphertext is returned when the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrDecryptionFailed is returned when authentication of the
	// ciphertext fails (wrong key or tampered data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication failed")
)

// Service encrypts and decrypts strings with AES-GCM. Ciphertext is
// nonce-prefixed and encoded with URL-safe base64 so the result can travel
// inside a URL path segment.
type Service struct {
	gcm cipher.AEAD
}

// NewService derives a 32-byte AES-256 key from the given signing key via
// SHA-256, so any non-empty configuration string is a valid key.
func NewService(signingKey string) (*Service, error) {
	if signingKey == "" {
		return nil, errors.New("signing key is empty")
	}

	derived := sha256.Sum256([]byte(signingKey))

	block, err := aes.NewCipher(derived[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Service{gcm: gcm}, nil
}

// Encrypt encrypts plaintext and returns base64url-encoded ciphertext with
// the nonce prepended.
func (s *Service) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64url-encoded ciphertext produced by Encrypt.
func (s *Service) Decrypt(encoded string) (string, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	nonceSize := s.gcm.NonceSize()
	if len(ciphertext) < nonceSize+s.gcm.Overhead()+1 {
		return "", ErrInvalidCiphertext
	}

	nonce := ciphertext[:nonceSize]
	encrypted := ciphertext[nonceSize:]

	plaintext, err := s.gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

package crypto

import (
	"strings"
	"testing"
)

func TestServiceRoundTrip(t *testing.T) {
	svc, err := NewService("unit-test-signing-key")
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	t.Run("encrypt and decrypt", func(t *testing.T) {
		plaintext := "resp_abc123;user_id:u1"

		ciphertext, err := svc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if ciphertext == plaintext {
			t.Error("ciphertext should not equal plaintext")
		}

		decrypted, err := svc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if decrypted != plaintext {
			t.Errorf("round trip mismatch: got %q, want %q", decrypted, plaintext)
		}
	})

	t.Run("ciphertext is URL-safe", func(t *testing.T) {
		ciphertext, err := svc.Encrypt("some payload with spaces and / characters")
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if strings.ContainsAny(ciphertext, "+/=") {
			t.Errorf("ciphertext contains non-URL-safe characters: %q", ciphertext)
		}
	})

	t.Run("different encryptions produce different ciphertexts", func(t *testing.T) {
		c1, _ := svc.Encrypt("payload")
		c2, _ := svc.Encrypt("payload")
		if c1 == c2 {
			t.Error("random nonce should make ciphertexts differ")
		}
	})
}

func TestServiceWrongKey(t *testing.T) {
	svc, _ := NewService("key-one")
	other, _ := NewService("key-two")

	ciphertext, err := svc.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := other.Decrypt(ciphertext); err != ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed, got: %v", err)
	}
}

func TestServiceInvalidInput(t *testing.T) {
	svc, _ := NewService("key")

	if _, err := svc.Decrypt("not base64url!!"); err == nil {
		t.Error("expected error for invalid base64")
	}

	// Valid base64 but far too short to hold nonce + tag.
	if _, err := svc.Decrypt("YWJj"); err != ErrInvalidCiphertext {
		t.Errorf("expected ErrInvalidCiphertext, got: %v", err)
	}
}

func TestNewServiceEmptyKey(t *testing.T) {
	if _, err := NewService(""); err == nil {
		t.Error("expected error for empty signing key")
	}
}

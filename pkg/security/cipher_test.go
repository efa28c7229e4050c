package security

import (
	"context"
	"testing"

	"github.com/cashlia/cashlia-core/pkg/prefs"
)

func TestCipherRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemory()
	c, err := NewCipher(store)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	sealed, err := c.Encrypt(ctx, []byte(`{"id":"e1","amount":500}`))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := c.Decrypt(ctx, sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plain) != `{"id":"e1","amount":500}` {
		t.Fatalf("round trip mismatch: %q", plain)
	}
}

func TestCipherKeyIsGeneratedOnceAndPersisted(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemory()
	c, _ := NewCipher(store)

	sealed, err := c.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	key, err := store.Get(ctx, prefs.KeyEncryptionKey)
	if err != nil || key == "" {
		t.Fatalf("expected persisted encryption key: %v", err)
	}

	// A second cipher over the same prefs must reuse the key.
	other, _ := NewCipher(store)
	plain, err := other.Decrypt(ctx, sealed)
	if err != nil || string(plain) != "payload" {
		t.Fatalf("second cipher should decrypt with stored key: %q %v", plain, err)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	c, _ := NewCipher(prefs.NewMemory())

	if _, err := c.Decrypt(ctx, "!!not-base64!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	if _, err := c.Decrypt(ctx, "AAAA"); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}

func TestGenerateInviteToken(t *testing.T) {
	token, err := GenerateInviteToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}
	other, _ := GenerateInviteToken()
	if token == other {
		t.Fatalf("tokens must be random")
	}
}

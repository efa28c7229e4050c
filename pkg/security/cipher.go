package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/prefs"
)

const cipherKeyLen = 32

// Cipher encrypts payloads leaving the device with a per-install AES-256-GCM
// key. The key is generated on first use, persisted in the preference store,
// and never transmitted.
type Cipher struct {
	prefs prefs.Prefs
}

// NewCipher builds a Cipher backed by the given preference store.
func NewCipher(p prefs.Prefs) (*Cipher, error) {
	if p == nil {
		return nil, errors.New(errors.CodeConfiguration, "preference store required")
	}
	return &Cipher{prefs: p}, nil
}

// Encrypt seals data and returns a base64 string of nonce||ciphertext.
func (c *Cipher) Encrypt(ctx context.Context, data []byte) (string, error) {
	gcm, err := c.aead(ctx)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "generate nonce")
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a payload produced by Encrypt.
func (c *Cipher) Decrypt(ctx context.Context, encoded string) ([]byte, error) {
	gcm, err := c.aead(ctx)
	if err != nil {
		return nil, err
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "decode payload")
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New(errors.CodeValidation, "payload too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "decrypt payload")
	}
	return plain, nil
}

func (c *Cipher) aead(ctx context.Context) (cipher.AEAD, error) {
	key, err := c.loadOrCreateKey(ctx)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "init cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "init gcm")
	}
	return gcm, nil
}

func (c *Cipher) loadOrCreateKey(ctx context.Context) ([]byte, error) {
	encoded, err := c.prefs.Get(ctx, prefs.KeyEncryptionKey)
	if err == nil {
		key, decodeErr := hex.DecodeString(encoded)
		if decodeErr != nil || len(key) != cipherKeyLen {
			return nil, errors.New(errors.CodeConfiguration, "stored encryption key is corrupt")
		}
		return key, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	key := make([]byte, cipherKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "generate encryption key")
	}
	if err := c.prefs.Set(ctx, prefs.KeyEncryptionKey, hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

// Package cryptox seals short strings (verification links) into opaque URL-safe tokens.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"securedocs/internal/domain"
)

const KeySize = 32

var encoding = base64.RawURLEncoding

// Codec is AES-256-GCM over a fixed key. Tokens are base64url(nonce || ciphertext || tag).
type Codec struct {
	aead cipher.AEAD
}

// NewCodec pads keyMaterial with '0' or truncates it to 32 bytes.
func NewCodec(keyMaterial string) (*Codec, error) {
	block, err := aes.NewCipher(DeriveKey(keyMaterial))
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

func DeriveKey(keyMaterial string) []byte {
	key := []byte(keyMaterial)
	if len(key) >= KeySize {
		return key[:KeySize]
	}
	return append(key, bytes.Repeat([]byte{'0'}, KeySize-len(key))...)
}

func (c *Codec) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encoding.EncodeToString(out), nil
}

func (c *Codec) Open(token string) (string, error) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return "", domain.ErrInvalidToken
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", domain.ErrInvalidToken
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", domain.ErrInvalidToken
	}
	return string(plain), nil
}

// Package crypto encrypts user Steam API keys at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

var (
	ErrKeySize        = errors.New("encryption key must be 32 bytes")
	ErrCiphertextSize = errors.New("ciphertext too short")
)

// Keybox seals and opens secrets with a fixed AES-256 key. Construct one at
// startup and share it; it holds no mutable state.
type Keybox struct {
	gcm cipher.AEAD
}

func NewKeybox(key string) (*Keybox, error) {
	if len(key) != 32 {
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Keybox{gcm: gcm}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (k *Keybox) Seal(plaintext string) (string, error) {
	nonce := make([]byte, k.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := k.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (k *Keybox) Open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	nonceSize := k.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrCiphertextSize
	}

	plaintext, err := k.gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Package vault seals agency OpenAI keys at rest with NaCl secretbox.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrDecrypt = errors.New("vault: cannot decrypt value")

// Vault encrypts and decrypts short secrets with a 32-byte key.
type Vault struct {
	key [32]byte
}

// New parses a 32-byte key given as 64 hex chars or standard base64.
func New(key string) (*Vault, error) {
	raw, err := decodeKey(strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}
	v := &Vault{}
	copy(v.key[:], raw)
	return v, nil
}

func decodeKey(key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("vault: ENCRYPTION_KEY is empty")
	}
	if b, err := hex.DecodeString(key); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == 32 {
		return b, nil
	}
	return nil, fmt.Errorf("vault: ENCRYPTION_KEY must decode to 32 bytes")
}

// Seal returns base64(nonce || box).
func (v *Vault) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (v *Vault) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &v.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Hint returns the last four characters of a key for display ("sk-...abcd").
func Hint(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "..." + key[len(key)-4:]
}

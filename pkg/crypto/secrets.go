// Package crypto handles credentials stored encrypted at rest. Encrypted
// values carry an ENC[v1]: prefix over base64(nonce || AES-256-GCM sealed
// plaintext).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

const (
	nonceSize = 12
	prefix    = "ENC[v1]:"
)

var (
	ErrBadKey        = errors.New("encryption key must decode to 32 bytes")
	ErrBadCiphertext = errors.New("malformed encrypted value")
)

// IsEncrypted reports whether a config value carries an ENC[vN]: prefix.
// Plaintext values pass configuration loading untouched.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, "ENC[v")
}

// Encrypt seals a plaintext credential for storage, keyed with a
// base64-encoded 32-byte key. Each call draws a fresh nonce, so equal
// plaintexts yield distinct values.
func Encrypt(plaintext, keyBase64 string) (string, error) {
	gcm, err := newGCM(keyBase64)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an ENC[v1]: value. Anything that is not a well-formed v1
// ciphertext under the given key is an error.
func Decrypt(value, keyBase64 string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return "", ErrBadCiphertext
	}
	data, err := base64.StdEncoding.DecodeString(value[len(prefix):])
	if err != nil || len(data) < nonceSize {
		return "", ErrBadCiphertext
	}
	gcm, err := newGCM(keyBase64)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt credential: %w", err)
	}
	return string(plain), nil
}

// GenerateKey draws a random AES-256 key, base64 encoded for storage in the
// environment.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func newGCM(keyBase64 string) (cipher.AEAD, error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil || len(key) != KeySize {
		return nil, ErrBadKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Package secrets encrypts credential fields at rest.
//
// Ciphertexts have the form "v1:" + base64(salt || nonce || sealed), where the
// AES-256 key is derived from the master key and the per-value salt with scrypt.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	versionPrefix = "v1:"
	saltSize      = 16
	nonceSize     = 12
	keySize       = 32

	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// Errors returned by the cipher
var (
	ErrEmptyMasterKey   = errors.New("secrets: master key is empty")
	ErrMalformed        = errors.New("secrets: malformed ciphertext")
	ErrDecryptionFailed = errors.New("secrets: decryption failed")
)

// FieldCipher encrypts and decrypts individual string fields
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESCipher is an AES-256-GCM FieldCipher keyed by a master secret
type AESCipher struct {
	masterKey []byte
}

// NewAESCipher creates a cipher for the given master key
func NewAESCipher(masterKey string) (*AESCipher, error) {
	if masterKey == "" {
		return nil, ErrEmptyMasterKey
	}
	return &AESCipher{masterKey: []byte(masterKey)}, nil
}

// Encrypt seals plaintext with a fresh salt and nonce
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	buf := make([]byte, saltSize+nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("secrets: read random: %w", err)
	}
	salt, nonce := buf[:saltSize], buf[saltSize:]

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(buf, nonce, []byte(plaintext), nil)
	return versionPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt
func (c *AESCipher) Decrypt(ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(ciphertext, versionPrefix)
	if !ok {
		return "", ErrMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < saltSize+nonceSize {
		return "", ErrMalformed
	}
	salt, nonce, sealed := raw[:saltSize], raw[saltSize:saltSize+nonceSize], raw[saltSize+nonceSize:]

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

func (c *AESCipher) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.masterKey, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// PlainCipher stores values unchanged. It is used when no master key is
// configured, which config validation forbids in production.
type PlainCipher struct{}

// Encrypt returns plaintext unchanged
func (PlainCipher) Encrypt(plaintext string) (string, error) { return plaintext, nil }

// Decrypt returns ciphertext unchanged
func (PlainCipher) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// New returns an AESCipher when masterKey is set and a PlainCipher otherwise
func New(masterKey string) FieldCipher {
	if masterKey == "" {
		return PlainCipher{}
	}
	c, _ := NewAESCipher(masterKey)
	return c
}

var (
	_ FieldCipher = (*AESCipher)(nil)
	_ FieldCipher = PlainCipher{}
)

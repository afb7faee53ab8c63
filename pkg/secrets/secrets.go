// Package secrets encrypts and decrypts workspace API keys at rest.
//
// Keys are sealed with AES-256-GCM under a 32-byte master key supplied
// as 64 hex characters. The wire format is "iv:tag:ciphertext" with
// every part hex-encoded.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	masterKeyHexLen = 64
	ivLen           = 16
)

// Cipher seals and opens API keys under one master key. Construct it
// once at process start with a validated configuration and inject it;
// no ambient global state is read.
type Cipher struct {
	key []byte
}

// NewCipher parses and validates the hex master key.
func NewCipher(masterKeyHex string) (*Cipher, error) {
	if len(masterKeyHex) != masterKeyHexLen {
		return nil, fmt.Errorf("master key must be %d hex characters (32 bytes), got %d", masterKeyHexLen, len(masterKeyHex))
	}
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext and returns the iv:tag:ciphertext encoding.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return "", fmt.Errorf("failed to create gcm: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	tagStart := len(sealed) - gcm.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	), nil
}

// Decrypt opens an iv:tag:ciphertext encoding produced by Encrypt.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	parts := strings.Split(encrypted, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid encrypted text format")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid iv encoding: %w", err)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid tag encoding: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return "", fmt.Errorf("failed to create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh random master key as 64 hex characters.
// Intended for initial setup.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Package utils provides utility functions for the application.
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Mailbox app-passwords are stored encrypted at rest. The data key is derived
// from the configured master key with PBKDF2 and the ciphertext is sealed with
// AES-256-GCM, nonce prepended, base64 encoded.

const credentialKDFIterations = 100_000

var credentialKDFSalt = []byte("inboxglow.credential.v1")

// ErrCredentialDecrypt indicates a stored credential could not be decrypted,
// typically because the master key changed. The owning account must be treated
// as unusable for the current cycle.
var ErrCredentialDecrypt = errors.New("credential decryption failed")

func deriveCredentialKey(masterKey string) []byte {
	return pbkdf2.Key([]byte(masterKey), credentialKDFSalt, credentialKDFIterations, 32, sha256.New)
}

// EncryptCredential encrypts a mailbox credential for storage.
func EncryptCredential(masterKey, plaintext string) (string, error) {
	if masterKey == "" {
		return "", errors.New("credential master key is empty")
	}

	block, err := aes.NewCipher(deriveCredentialKey(masterKey))
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to initialize GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptCredential decrypts a credential produced by EncryptCredential.
// Any tampering or key mismatch yields ErrCredentialDecrypt.
func DecryptCredential(masterKey, encoded string) (string, error) {
	if masterKey == "" {
		return "", errors.New("credential master key is empty")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCredentialDecrypt
	}

	block, err := aes.NewCipher(deriveCredentialKey(masterKey))
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to initialize GCM: %w", err)
	}

	if len(raw) < gcm.NonceSize() {
		return "", ErrCredentialDecrypt
	}

	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", ErrCredentialDecrypt
	}

	return string(plaintext), nil
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKey = "unit-test-master-key"

func TestEncryptDecryptCredential(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "app password", plaintext: "abcd efgh ijkl mnop"},
		{name: "oauth refresh token", plaintext: "1//0gFooBarBazQux-L9IrRrCgYIARAAGBASNwF"},
		{name: "empty credential", plaintext: ""},
		{name: "unicode", plaintext: "пароль-秘密-🔑"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := EncryptCredential(testMasterKey, tt.plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, tt.plaintext, sealed)

			opened, err := DecryptCredential(testMasterKey, sealed)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, opened)
		})
	}
}

func TestEncryptCredentialIsNonDeterministic(t *testing.T) {
	a, err := EncryptCredential(testMasterKey, "same-secret")
	require.NoError(t, err)
	b, err := EncryptCredential(testMasterKey, "same-secret")
	require.NoError(t, err)

	// Random nonce per seal
	assert.NotEqual(t, a, b)
}

func TestDecryptCredentialRejectsTampering(t *testing.T) {
	sealed, err := EncryptCredential(testMasterKey, "secret")
	require.NoError(t, err)

	t.Run("wrong master key", func(t *testing.T) {
		_, err := DecryptCredential("different-master-key", sealed)
		assert.ErrorIs(t, err, ErrCredentialDecrypt)
	})

	t.Run("garbage ciphertext", func(t *testing.T) {
		_, err := DecryptCredential(testMasterKey, "not-base64!!!")
		assert.ErrorIs(t, err, ErrCredentialDecrypt)
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		_, err := DecryptCredential(testMasterKey, sealed[:8])
		assert.ErrorIs(t, err, ErrCredentialDecrypt)
	})
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 50.0, Clamp(50, 0, 100))
	assert.Equal(t, 0.0, Clamp(-10, 0, 100))
	assert.Equal(t, 100.0, Clamp(250, 0, 100))
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, 3, CeilDiv(9, 4))
	assert.Equal(t, 2, CeilDiv(8, 4))
	assert.Equal(t, 1, CeilDiv(1, 4))
	assert.Equal(t, 0, CeilDiv(0, 4))
}

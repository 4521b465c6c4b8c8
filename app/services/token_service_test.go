// Package services provides external service integrations and technical concerns like mail delivery and tokens
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		"test-issuer",
		"test-audience",
		"test-secret-key-for-jwt-signing-32-chars",
	)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name           string
		accessTokenTTL time.Duration
		issuer         string
		audience       string
		secretKey      string
		expectError    bool
	}{
		{
			name:           "valid configuration",
			accessTokenTTL: 15 * time.Minute,
			issuer:         "test-issuer",
			audience:       "test-audience",
			secretKey:      "test-secret-key-for-jwt-signing-32-chars",
			expectError:    false,
		},
		{
			name:           "missing secret key",
			accessTokenTTL: 15 * time.Minute,
			issuer:         "test-issuer",
			audience:       "test-audience",
			secretKey:      "",
			expectError:    true,
		},
		{
			name:           "empty issuer and audience",
			accessTokenTTL: 15 * time.Minute,
			issuer:         "",
			audience:       "",
			secretKey:      "test-secret-key-for-jwt-signing-32-chars",
			expectError:    false, // Should not error, just use empty strings
		},
		{
			name:           "zero TTL falls back to default",
			accessTokenTTL: 0,
			issuer:         "test-issuer",
			audience:       "test-audience",
			secretKey:      "test-secret-key-for-jwt-signing-32-chars",
			expectError:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(
				tt.accessTokenTTL,
				tt.issuer,
				tt.audience,
				tt.secretKey,
			)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestGenerateOperatorToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	token, expiresIn, err := service.GenerateOperatorToken(3)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, int((15 * time.Minute).Seconds()), expiresIn)

	// Two tokens for the same key must carry distinct token IDs
	token2, _, err := service.GenerateOperatorToken(3)
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestValidateOperatorToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	t.Run("valid token round trip", func(t *testing.T) {
		token, _, err := service.GenerateOperatorToken(7)
		require.NoError(t, err)

		claims, err := service.ValidateOperatorToken(token)
		require.NoError(t, err)
		assert.Equal(t, 7, claims.KeyID)
		assert.NotEmpty(t, claims.TokenID)
		assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
	})

	t.Run("garbage token", func(t *testing.T) {
		claims, err := service.ValidateOperatorToken("not.a.jwt")
		assert.ErrorIs(t, err, ErrTokenInvalid)
		assert.Nil(t, claims)
	})

	t.Run("token signed with a different key", func(t *testing.T) {
		other, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", "a-completely-different-signing-key!!")
		require.NoError(t, err)

		token, _, err := other.GenerateOperatorToken(1)
		require.NoError(t, err)

		claims, err := service.ValidateOperatorToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
		assert.Nil(t, claims)
	})

	t.Run("wrong issuer rejected", func(t *testing.T) {
		other, err := NewTokenService(15*time.Minute, "other-issuer", "test-audience", "test-secret-key-for-jwt-signing-32-chars")
		require.NoError(t, err)

		token, _, err := other.GenerateOperatorToken(1)
		require.NoError(t, err)

		_, err = service.ValidateOperatorToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired token", func(t *testing.T) {
		short, err := NewTokenService(1*time.Millisecond, "test-issuer", "test-audience", "test-secret-key-for-jwt-signing-32-chars")
		require.NoError(t, err)

		token, _, err := short.GenerateOperatorToken(1)
		require.NoError(t, err)

		time.Sleep(1100 * time.Millisecond)

		_, err = service.ValidateOperatorToken(token)
		assert.Error(t, err)
	})
}

package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/inboxglow/inboxglow/utils"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService issues and validates operator access tokens. Operators
// exchange a configured API key for a short-lived bearer token.
type TokenService interface {
	GenerateOperatorToken(keyID int) (token string, expiresIn int, err error)
	ValidateOperatorToken(token string) (*OperatorTokenClaims, error)
}

// OperatorTokenClaims represents the claims in an operator JWT
type OperatorTokenClaims struct {
	KeyID     int       `json:"key_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenID   string    `json:"jti"`
}

// TokenServiceImpl implements TokenService with HS256 symmetric signing
type TokenServiceImpl struct {
	accessTokenTTL time.Duration
	secretKey      []byte
	issuer         string
	audience       string
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL time.Duration, issuer, audience, secretKey string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if accessTokenTTL <= 0 {
		accessTokenTTL = utils.AccessTokenTTL
	}

	return &TokenServiceImpl{
		accessTokenTTL: accessTokenTTL,
		secretKey:      []byte(secretKey),
		issuer:         issuer,
		audience:       audience,
	}, nil
}

// GenerateOperatorToken issues a signed access token for the operator key
func (t *TokenServiceImpl) GenerateOperatorToken(keyID int) (string, int, error) {
	now := utils.UTCNow()
	expiresAt := now.Add(t.accessTokenTTL)

	claims := jwt.MapClaims{
		"key_id": keyID,
		"iss":    t.issuer,
		"aud":    t.audience,
		"iat":    now.Unix(),
		"exp":    expiresAt.Unix(),
		"jti":    uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign operator token: %w", err)
	}

	return signed, int(t.accessTokenTTL.Seconds()), nil
}

// ValidateOperatorToken verifies signature, issuer, audience, and expiry
func (t *TokenServiceImpl) ValidateOperatorToken(tokenStr string) (*OperatorTokenClaims, error) {
	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secretKey, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	keyID, ok := claims["key_id"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	out := &OperatorTokenClaims{KeyID: int(keyID)}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if jti, ok := claims["jti"].(string); ok {
		out.TokenID = jti
	}

	return out, nil
}

// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"crypto/subtle"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/inboxglow/inboxglow/app/dto"
	"github.com/inboxglow/inboxglow/app/services"
	"github.com/inboxglow/inboxglow/config"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	IssueToken(c fiber.Ctx) error
}

// AuthHandler exchanges operator API keys for short-lived access tokens
type AuthHandler struct {
	tokenService services.TokenService
	securityCfg  config.SecurityConfig
	validator    *validator.Validate
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(tokenService services.TokenService, securityCfg config.SecurityConfig) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		securityCfg:  securityCfg,
		validator:    validator.New(),
	}
}

func (h *AuthHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AuthHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// IssueToken exchanges a configured operator API key for an access token
// @Summary Issue Operator Token
// @Description Exchange an operator API key for a short-lived bearer token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "Operator API key"
// @Success 200 {object} dto.APIResponse{data=dto.TokenResponse} "Token issued successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unknown API key"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/token [post]
func (h *AuthHandler) IssueToken(c fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	keyID := h.matchAPIKey(req.APIKey)
	if keyID < 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Unknown API key", "UNKNOWN_API_KEY", nil)
	}

	token, expiresIn, err := h.tokenService.GenerateOperatorToken(keyID)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Token issuance failed", "TOKEN_ISSUANCE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Token issued successfully", dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	})
}

// matchAPIKey returns the index of the matching configured key, -1 when none
// matches. Comparison is constant time per candidate.
func (h *AuthHandler) matchAPIKey(candidate string) int {
	match := -1
	for i, key := range h.securityCfg.OperatorAPIKeys {
		if len(key) == len(candidate) && subtle.ConstantTimeCompare([]byte(key), []byte(candidate)) == 1 {
			match = i
		}
	}
	return match
}

package dto

// TokenRequest represents an operator API key exchange request
type TokenRequest struct {
	APIKey string `json:"api_key" validate:"required,min=16,max=128"`
}

// TokenResponse represents an issued operator access token
type TokenResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

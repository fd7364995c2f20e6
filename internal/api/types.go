package api

import "time"

// TokenRequest represents the request payload for a client token
type TokenRequest struct {
	ClientID string `json:"client_id"`
}

// TokenResponse represents the response payload for a client token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Clients int    `json:"clients"`
}

// ErrorResponse matches the error shape of every other endpoint
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

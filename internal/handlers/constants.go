package handlers

const (
	// PinHeader carries the household PIN for gated operations
	PinHeader = "X-Pin"

	maxBodyBytes = 1 << 20

	ErrInvalidJSON         = "Invalid JSON body"
	ErrInternalServerError = "Internal server error"
	ErrTooManyRequests     = "Too many requests"
	ErrOAuthNotConfigured  = "OAuth provider not configured"
)

package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authorization flow errors
	ErrRandomnessUnavailable = fmt.Errorf("secure randomness unavailable")
	ErrMissingVerifier       = fmt.Errorf("no pending code verifier")
	ErrExchangeFailed        = fmt.Errorf("token exchange failed")
	ErrExchangeRejected      = fmt.Errorf("token exchange rejected")
	ErrMalformedResponse     = fmt.Errorf("malformed token response")
	ErrStateMismatch         = fmt.Errorf("state parameter mismatch")
	ErrAuthorizationDenied   = fmt.Errorf("authorization denied")
	ErrMissingCode           = fmt.Errorf("missing authorization code")
	ErrTimeout               = fmt.Errorf("operation timed out")

	// Session errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrSessionNotFound  = fmt.Errorf("session not found")
	ErrTokenExpired     = fmt.Errorf("access token expired")

	// API and service errors
	ErrUnauthorized       = fmt.Errorf("unauthorized: check your token and scopes")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNoActiveDevice     = fmt.Errorf("no active device")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

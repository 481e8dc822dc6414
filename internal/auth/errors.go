package auth

import "errors"

var (
	// Authentication failures. Unknown login key, wrong password and inactive
	// account all collapse to ErrInvalidCredentials so responses cannot be
	// used for account enumeration.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrMissingToken       = errors.New("auth: missing token")

	// Credential verification failures. Callers that log them see distinct
	// kinds; the HTTP boundary collapses all four to a generic 401.
	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrTokenSignature = errors.New("auth: token signature invalid")
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrTokenWrongType = errors.New("auth: token type mismatch")

	// Session lifecycle failures.
	ErrSessionNotFound = errors.New("auth: session not found")
	ErrSessionRevoked  = errors.New("auth: session revoked")
	ErrSessionExpired  = errors.New("auth: session expired")

	// Authorization and administrative failures.
	ErrPermissionDenied = errors.New("auth: permission denied")
	ErrNotFound         = errors.New("auth: not found")
	ErrConflict         = errors.New("auth: already exists")
	ErrInvalidInput     = errors.New("auth: invalid input")
)

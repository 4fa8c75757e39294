package auth

import "errors"

// Token errors.
var (
	ErrEmptyToken   = errors.New("auth: empty token")
	ErrEmptySecret  = errors.New("auth: empty secret")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrTokenExpired = errors.New("auth: token expired")
)

// Signed upload errors, returned by VerifyIngest.
var (
	ErrIngestNotConfigured = errors.New("auth: ingest signing not configured")
	ErrMissingSignature    = errors.New("auth: missing ingest signature")
	ErrInvalidTimestamp    = errors.New("auth: invalid ingest timestamp")
	ErrSignatureExpired    = errors.New("auth: ingest signature expired")
	ErrInvalidSignature    = errors.New("auth: invalid ingest signature")
)

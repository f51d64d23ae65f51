package auth

import "errors"

var (
	// ErrInvalidToken covers bad signatures, expired tokens and malformed input.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenNotProvided indicates a missing or malformed Authorization header.
	ErrTokenNotProvided = errors.New("token not provided")
	// ErrUnauthenticated indicates that no identity is attached to the request.
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrForbidden indicates an authenticated identity denied by policy.
	ErrForbidden = errors.New("access denied")
)

// Error codes written by the guard.
const (
	CodeTokenNotProvided = "TOKEN_NOT_PROVIDED"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeForbidden        = "FORBIDDEN"
)

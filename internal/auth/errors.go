package auth

import "errors"

// Failure categories surfaced by the auth service. Callers wrap these with
// fmt.Errorf("%w: detail", ...) and the HTTP layer dispatches on errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("resource conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// ErrInvalidToken covers every token verification failure: bad signature,
// malformed structure and expiry all collapse into this one value so the
// response gives no oracle about which check failed.
var ErrInvalidToken = errors.New("invalid token")

package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	ErrInvalidPhoneFormat = errors.New("invalid phone format")
	ErrRateLimited        = errors.New("rate limited")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrSMSNotConfigured   = errors.New("sms not configured")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrExpired            = errors.New("expired")
	ErrInvalidCode        = errors.New("invalid code")
)

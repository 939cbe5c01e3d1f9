package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cims-otp/internal/domain"
)

type errorMapping struct {
	target  error
	status  int
	reason  string
	message string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidPhoneFormat, http.StatusBadRequest, "invalid_phone_format", "Invalid phone number format. Use E.164, e.g. +15551234567"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "Too many OTP requests. Please try again later."},
	{domain.ErrSMSNotConfigured, http.StatusInternalServerError, "sms_not_configured", "SMS service not configured"},
	{domain.ErrDeliveryFailed, http.StatusServiceUnavailable, "delivery_failed", "Failed to send OTP"},
	{domain.ErrNotFound, http.StatusBadRequest, "not_found", "No OTP found for this number. Please request a new one."},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts", "Too many failed attempts. Please request a new OTP."},
	{domain.ErrExpired, http.StatusBadRequest, "expired", "OTP has expired. Please request a new one."},
	{domain.ErrInvalidCode, http.StatusBadRequest, "invalid_code", "Invalid OTP"},
	{domain.ErrConflict, http.StatusConflict, "conflict", "OTP was updated by another request. Please try again."},
}

// httpError maps a service error to its status and body. Unknown errors are
// logged and reported as unavailable without leaking details.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.message, m.reason)
			return
		}
	}
	slog.ErrorContext(r.Context(), "otp request failed", "error", err)
	writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable", "unavailable")
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cims-otp/internal/application/otp"
	"github.com/go-chi/chi/v5"
)

const (
	actionSend   = "send"
	actionVerify = "verify"

	maxBodyBytes = 1 << 12
)

type otpRequest struct {
	Phone  string `json:"phone"`
	Action string `json:"action"`
	OTP    string `json:"otp"`
}

// OTPHandler serves the send and verify actions.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler { return &OTPHandler{svc: svc} }

// Action dispatches on the {action} path parameter, falling back to the body's action field.
func (h *OTPHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "body_too_large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_body")
		return
	}
	if action := chi.URLParam(r, "action"); action != "" {
		req.Action = action
	}
	if req.Phone == "" {
		writeError(w, http.StatusBadRequest, "Phone number is required", "phone_required")
		return
	}

	switch req.Action {
	case actionSend:
		if err := h.svc.IssueCode(r.Context(), req.Phone); err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, OTPEnvelope{Success: true, Message: "OTP sent successfully"})
	case actionVerify:
		if err := h.svc.VerifyCode(r.Context(), req.Phone, req.OTP); err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, OTPEnvelope{Success: true, Verified: true})
	default:
		writeError(w, http.StatusBadRequest, "Invalid action", "invalid_action")
	}
}

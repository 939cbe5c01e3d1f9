package http

import (
	"context"

	"github.com/cims-otp/internal/application/otp"
)

// Store is the minimal interface the router requires from an OTP backend: the
// record store, the issuance log and a readiness check.
type Store interface {
	otp.RecordStore
	otp.IssuanceLog
	Ping(ctx context.Context) error
}

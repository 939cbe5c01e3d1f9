package otp

import (
	"context"
	"time"

	"github.com/cims-otp/internal/domain"
)

// RecordStore persists the live OTPRecord for each phone number.
//
// Update and Delete are conditional: they only apply while the stored record still
// carries current.IssuanceID (and, for Update, current.Version). A lost race is
// reported as domain.ErrConflict. Find reports a missing record as domain.ErrNotFound.
type RecordStore interface {
	Upsert(ctx context.Context, r *domain.OTPRecord) error
	Find(ctx context.Context, phone string) (*domain.OTPRecord, error)
	Update(ctx context.Context, current *domain.OTPRecord, patch domain.RecordPatch) error
	Delete(ctx context.Context, current *domain.OTPRecord) error
}

// IssuanceLog records accepted issuances and answers the sliding-window rate-limit query.
type IssuanceLog interface {
	RecordIssuance(ctx context.Context, iss *domain.Issuance) error
	CountIssuedSince(ctx context.Context, phone string, since time.Time) (int, error)
}

// SMSSender delivers a text message. The sender identity is provider configuration.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cims-otp/internal/domain"
	"github.com/cims-otp/internal/pkg/clock"
	"github.com/cims-otp/internal/pkg/id"
	"github.com/cims-otp/internal/pkg/phoneref"
	"github.com/cims-otp/internal/pkg/validate"
)

// Policy holds the issuance and verification limits.
type Policy struct {
	TTL         time.Duration
	MaxAttempts int
	IssueLimit  int
	IssueWindow time.Duration
}

// DefaultPolicy: codes live 5 minutes, 5 wrong guesses, 3 issuances per trailing hour.
func DefaultPolicy() Policy {
	return Policy{
		TTL:         5 * time.Minute,
		MaxAttempts: 5,
		IssueLimit:  3,
		IssueWindow: time.Hour,
	}
}

// Service issues one-time codes over SMS and verifies them.
type Service interface {
	// IssueCode generates, stores and texts a fresh code for phone, replacing any pending one.
	IssueCode(ctx context.Context, phone string) error
	// VerifyCode consumes the pending code for phone. A nil error means the phone is verified.
	VerifyCode(ctx context.Context, phone, candidate string) error
}

// ServiceDeps wires the service. SMSSender may be nil when no provider is configured;
// IssueCode then fails with domain.ErrSMSNotConfigured.
type ServiceDeps struct {
	Records      RecordStore
	Issuances    IssuanceLog
	SMSSender    SMSSender
	Clock        clock.Clocker
	Policy       Policy
	GenerateCode func() (string, error)
}

type service struct {
	records   RecordStore
	issuances IssuanceLog
	sms       SMSSender
	clock     clock.Clocker
	policy    Policy
	generate  func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		records:   deps.Records,
		issuances: deps.Issuances,
		sms:       deps.SMSSender,
		clock:     deps.Clock,
		policy:    deps.Policy,
		generate:  deps.GenerateCode,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.policy == (Policy{}) {
		s.policy = DefaultPolicy()
	}
	if s.generate == nil {
		s.generate = RandomCode
	}
	return s
}

func (s *service) IssueCode(ctx context.Context, phone string) error {
	if !validate.Phone(phone) {
		return fmt.Errorf("issue code: %w", domain.ErrInvalidPhoneFormat)
	}
	if s.sms == nil {
		return fmt.Errorf("issue code: %w", domain.ErrSMSNotConfigured)
	}
	ref := phoneref.Of(phone)
	now := s.clock.Now()

	issued, err := s.issuances.CountIssuedSince(ctx, phone, now.Add(-s.policy.IssueWindow))
	if err != nil {
		return fmt.Errorf("count issuances: %w", err)
	}
	if issued >= s.policy.IssueLimit {
		slog.WarnContext(ctx, "otp issuance rate limited", "phone_ref", ref, "issued", issued, "window", s.policy.IssueWindow)
		return fmt.Errorf("%d codes issued in the last %s: %w", issued, s.policy.IssueWindow, domain.ErrRateLimited)
	}

	code, err := s.generate()
	if err != nil {
		return err
	}
	iss := &domain.Issuance{
		ID:       id.NewAt(now),
		Phone:    phone,
		IssuedAt: now,
		PurgeAt:  now.Add(s.policy.IssueWindow),
	}
	if err := s.issuances.RecordIssuance(ctx, iss); err != nil {
		return fmt.Errorf("record issuance: %w", err)
	}
	rec := &domain.OTPRecord{
		Phone:      phone,
		Code:       code,
		ExpiresAt:  now.Add(s.policy.TTL),
		IssuanceID: iss.ID,
		Version:    1,
		CreatedAt:  now,
	}
	if err := s.records.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("store otp record: %w", err)
	}

	// The record stays committed when delivery fails.
	if err := s.sms.SendSMS(ctx, phone, Message(code, s.policy.TTL)); err != nil {
		err = redactPhone(err, phone, ref)
		slog.ErrorContext(ctx, "otp delivery failed", "phone_ref", ref, "issuance_id", iss.ID, "error", err)
		return fmt.Errorf("send sms: %w: %w", domain.ErrDeliveryFailed, err)
	}
	slog.InfoContext(ctx, "otp issued", "phone_ref", ref, "issuance_id", iss.ID, "expires_at", rec.ExpiresAt)
	return nil
}

func (s *service) VerifyCode(ctx context.Context, phone, candidate string) error {
	if !validate.Phone(phone) {
		return fmt.Errorf("verify code: %w", domain.ErrInvalidPhoneFormat)
	}
	ref := phoneref.Of(phone)

	rec, err := s.records.Find(ctx, phone)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no otp for phone: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load otp record: %w", err)
	}
	// A verified record is already consumed; its delete just has not landed.
	if rec.Verified {
		return fmt.Errorf("otp already used: %w", domain.ErrNotFound)
	}

	// Exhaustion wins over expiry.
	if rec.Exhausted(s.policy.MaxAttempts) {
		return fmt.Errorf("%d failed attempts: %w", rec.Attempts, domain.ErrTooManyAttempts)
	}

	now := s.clock.Now()
	if rec.Expired(now) {
		s.discard(ctx, rec, "expired")
		return fmt.Errorf("otp expired at %s: %w", rec.ExpiresAt.Format(time.RFC3339), domain.ErrExpired)
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(rec.Code)) != 1 {
		attempts := rec.Attempts + 1
		if err := s.records.Update(ctx, rec, domain.RecordPatch{Attempts: &attempts}); err != nil {
			return fmt.Errorf("record failed attempt: %w", err)
		}
		slog.InfoContext(ctx, "otp mismatch", "phone_ref", ref, "issuance_id", rec.IssuanceID, "attempts", attempts)
		return fmt.Errorf("attempt %d of %d: %w", attempts, s.policy.MaxAttempts, domain.ErrInvalidCode)
	}

	verified := true
	patch := domain.RecordPatch{Verified: &verified, VerifiedAt: &now}
	if err := s.records.Update(ctx, rec, patch); err != nil {
		return fmt.Errorf("mark otp verified: %w", err)
	}
	rec.Apply(patch)
	s.discard(ctx, rec, "verified")

	slog.InfoContext(ctx, "otp verified", "phone_ref", ref, "issuance_id", rec.IssuanceID)
	return nil
}

// discard deletes rec. Losing the race to a newer issuance is fine; other failures are logged
// because the caller's outcome is already decided.
func (s *service) discard(ctx context.Context, rec *domain.OTPRecord, reason string) {
	err := s.records.Delete(ctx, rec)
	if err == nil || errors.Is(err, domain.ErrConflict) {
		return
	}
	slog.WarnContext(ctx, "failed to delete otp record", "phone_ref", phoneref.Of(rec.Phone), "reason", reason, "error", err)
}

// redactedError keeps err's chain but replaces its text.
type redactedError struct {
	err  error
	text string
}

func (e *redactedError) Error() string { return e.text }
func (e *redactedError) Unwrap() error { return e.err }

// redactPhone replaces the destination number, with or without its leading
// plus, by ref in err's text. Provider errors can echo the number back.
func redactPhone(err error, phone, ref string) error {
	digits := strings.TrimPrefix(phone, "+")
	if digits == "" {
		return err
	}
	text := err.Error()
	redacted := strings.ReplaceAll(strings.ReplaceAll(text, phone, ref), digits, ref)
	if redacted == text {
		return err
	}
	return &redactedError{err: err, text: redacted}
}

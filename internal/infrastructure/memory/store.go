// Package memory keeps OTP records and issuances in process memory.
// State is lost on restart and is not shared between instances, so it is only
// suitable for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cims-otp/internal/domain"
	"github.com/cims-otp/internal/pkg/clock"
)

// Store implements both the record store and the issuance log.
type Store struct {
	mu        sync.Mutex
	clock     clock.Clocker
	records   map[string]domain.OTPRecord
	issuances map[string][]domain.Issuance
}

func NewStore(c clock.Clocker) *Store {
	if c == nil {
		c = clock.New()
	}
	return &Store{
		clock:     c,
		records:   make(map[string]domain.OTPRecord),
		issuances: make(map[string][]domain.Issuance),
	}
}

func (s *Store) Upsert(_ context.Context, r *domain.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Phone] = clone(r)
	return nil
}

func (s *Store) Find(_ context.Context, phone string) (*domain.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[phone]
	if !ok {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	out := clone(&r)
	return &out, nil
}

func (s *Store) Update(_ context.Context, current *domain.OTPRecord, patch domain.RecordPatch) error {
	if patch.Empty() {
		return fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[current.Phone]
	if !ok || r.IssuanceID != current.IssuanceID || r.Version != current.Version {
		return fmt.Errorf("otp record changed: %w", domain.ErrConflict)
	}
	r.Apply(patch)
	s.records[current.Phone] = r
	return nil
}

func (s *Store) Delete(_ context.Context, current *domain.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[current.Phone]
	if !ok {
		return nil
	}
	if r.IssuanceID != current.IssuanceID {
		return fmt.Errorf("otp record replaced: %w", domain.ErrConflict)
	}
	delete(s.records, current.Phone)
	return nil
}

func (s *Store) RecordIssuance(_ context.Context, iss *domain.Issuance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuances[iss.Phone] = append(s.prune(iss.Phone), *iss)
	return nil
}

func (s *Store) CountIssuedSince(_ context.Context, phone string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, iss := range s.prune(phone) {
		if !iss.IssuedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// prune drops issuances strictly past their PurgeAt, so an issuance exactly one
// window old still counts. Caller holds mu.
func (s *Store) prune(phone string) []domain.Issuance {
	now := s.clock.Now()
	kept := s.issuances[phone][:0]
	for _, iss := range s.issuances[phone] {
		if !now.After(iss.PurgeAt) {
			kept = append(kept, iss)
		}
	}
	if len(kept) == 0 {
		delete(s.issuances, phone)
		return nil
	}
	s.issuances[phone] = kept
	return kept
}

func clone(r *domain.OTPRecord) domain.OTPRecord {
	out := *r
	if r.VerifiedAt != nil {
		t := *r.VerifiedAt
		out.VerifiedAt = &t
	}
	return out
}

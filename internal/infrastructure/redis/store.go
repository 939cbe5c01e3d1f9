package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cims-otp/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	recordPrefix   = "otp:record:"
	issuancePrefix = "otp:issuances:"

	// recordPurgeGrace keeps an expired record readable for a while so a late
	// verify reports "expired" instead of "not found".
	recordPurgeGrace = time.Hour
)

// recordDoc is the stored JSON shape; OTPRecord hides its code from JSON.
type recordDoc struct {
	domain.OTPRecord
	Code string `json:"code"`
}

// Store implements both the record store and the issuance log.
//
// Records live under otp:record:<phone> as JSON. Issuances live in the sorted
// set otp:issuances:<phone>, member = issuance ID, score = issue time in Unix
// microseconds.
type Store struct {
	rdb *goredis.Client
}

func NewStore(rdb *goredis.Client) *Store {
	return &Store{rdb: rdb}
}

func recordKey(phone string) string   { return recordPrefix + phone }
func issuanceKey(phone string) string { return issuancePrefix + phone }

func (s *Store) Upsert(ctx context.Context, r *domain.OTPRecord) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	key := recordKey(r.Phone)
	_, err = s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, key, data, 0)
		p.ExpireAt(ctx, key, r.ExpiresAt.Add(recordPurgeGrace))
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert otp record: %w", err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, phone string) (*domain.OTPRecord, error) {
	return getRecord(ctx, s.rdb, recordKey(phone))
}

// Update applies patch only if the stored record still matches current's issuance
// and version. The key's expiry is kept.
func (s *Store) Update(ctx context.Context, current *domain.OTPRecord, patch domain.RecordPatch) error {
	if patch.Empty() {
		return fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	key := recordKey(current.Phone)
	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		stored, err := getRecord(ctx, tx, key)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("otp record gone: %w", domain.ErrConflict)
		}
		if err != nil {
			return err
		}
		if stored.IssuanceID != current.IssuanceID || stored.Version != current.Version {
			return fmt.Errorf("otp record changed: %w", domain.ErrConflict)
		}
		stored.Apply(patch)
		data, err := encodeRecord(stored)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, key, data, goredis.KeepTTL)
			return nil
		})
		return err
	}, key)
	return txConflict(err)
}

// Delete removes the record if it still belongs to current's issuance. Deleting a
// missing record succeeds.
func (s *Store) Delete(ctx context.Context, current *domain.OTPRecord) error {
	key := recordKey(current.Phone)
	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		stored, err := getRecord(ctx, tx, key)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if stored.IssuanceID != current.IssuanceID {
			return fmt.Errorf("otp record replaced: %w", domain.ErrConflict)
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	return txConflict(err)
}

// RecordIssuance adds iss to the phone's set and drops entries older than the
// window implied by iss.PurgeAt. The set expires with its newest entry.
func (s *Store) RecordIssuance(ctx context.Context, iss *domain.Issuance) error {
	key := issuanceKey(iss.Phone)
	window := iss.PurgeAt.Sub(iss.IssuedAt)
	cutoff := iss.IssuedAt.Add(-window).UnixMicro()
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		p.ZAdd(ctx, key, goredis.Z{Score: float64(iss.IssuedAt.UnixMicro()), Member: iss.ID})
		p.ExpireAt(ctx, key, iss.PurgeAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record issuance: %w", err)
	}
	return nil
}

func (s *Store) CountIssuedSince(ctx context.Context, phone string, since time.Time) (int, error) {
	n, err := s.rdb.ZCount(ctx, issuanceKey(phone), strconv.FormatInt(since.UnixMicro(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count issuances: %w", err)
	}
	return int(n), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// getter is satisfied by both *goredis.Client and *goredis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func getRecord(ctx context.Context, c getter, key string) (*domain.OTPRecord, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get otp record: %w", err)
	}
	var doc recordDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode otp record: %w", err)
	}
	rec := doc.OTPRecord
	rec.Code = doc.Code
	return &rec, nil
}

func encodeRecord(r *domain.OTPRecord) ([]byte, error) {
	data, err := json.Marshal(recordDoc{OTPRecord: *r, Code: r.Code})
	if err != nil {
		return nil, fmt.Errorf("encode otp record: %w", err)
	}
	return data, nil
}

// txConflict maps an aborted WATCH transaction to domain.ErrConflict.
func txConflict(err error) error {
	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("otp record changed: %w", domain.ErrConflict)
	}
	return err
}

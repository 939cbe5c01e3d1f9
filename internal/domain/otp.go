package domain

import "time"

// OTPRecord is the single live one-time code for a phone number.
// PK: phone. Issuing a new code replaces the record wholesale.
type OTPRecord struct {
	Phone      string     `json:"phone" dynamodbav:"phone"`
	Code       string     `json:"-" dynamodbav:"code"`
	ExpiresAt  time.Time  `json:"expires_at" dynamodbav:"expires_at"`
	Attempts   int        `json:"attempts" dynamodbav:"attempts"`
	Verified   bool       `json:"verified" dynamodbav:"verified"`
	VerifiedAt *time.Time `json:"verified_at" dynamodbav:"verified_at"`
	IssuanceID string     `json:"issuance_id" dynamodbav:"issuance_id"`
	Version    int64      `json:"version" dynamodbav:"version"`
	CreatedAt  time.Time  `json:"created_at" dynamodbav:"created_at"`
}

// Expired reports whether the code is no longer valid at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Exhausted reports whether the failed-attempt budget is used up.
func (r *OTPRecord) Exhausted(maxAttempts int) bool {
	return r.Attempts >= maxAttempts
}

// Apply copies the set fields of p onto r and bumps the version,
// mirroring what a store does on a successful conditional update.
func (r *OTPRecord) Apply(p RecordPatch) {
	if p.Attempts != nil {
		r.Attempts = *p.Attempts
	}
	if p.Verified != nil {
		r.Verified = *p.Verified
	}
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		r.VerifiedAt = &t
	}
	r.Version++
}

// RecordPatch is a partial update of an OTPRecord. Nil fields are left untouched.
type RecordPatch struct {
	Attempts   *int
	Verified   *bool
	VerifiedAt *time.Time
}

// Empty reports whether the patch changes nothing.
func (p RecordPatch) Empty() bool {
	return p.Attempts == nil && p.Verified == nil && p.VerifiedAt == nil
}

// Issuance is one accepted code issuance. Issuances feed the per-phone rate limit
// and are purged by the store once PurgeAt passes.
type Issuance struct {
	ID       string    `json:"id" dynamodbav:"issuance_id"`
	Phone    string    `json:"phone" dynamodbav:"phone"`
	IssuedAt time.Time `json:"issued_at" dynamodbav:"-"`
	PurgeAt  time.Time `json:"purge_at" dynamodbav:"-"`
}

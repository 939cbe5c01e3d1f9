package dynamo

// DynamoDB attribute names used in key, update and condition expressions.
const (
	fieldPhone      = "phone"
	fieldAttempts   = "attempts"
	fieldVerified   = "verified"
	fieldVerifiedAt = "verified_at"
	fieldIssuanceID = "issuance_id"
	fieldVersion    = "version"
	fieldIssuedAt   = "issued_at"
	fieldPurgeAt    = "purge_at"
)

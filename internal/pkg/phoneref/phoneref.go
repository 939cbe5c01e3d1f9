// Package phoneref derives a stable, non-reversible reference for a phone number
// so log lines can be correlated without carrying the number itself.
package phoneref

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

const refBytes = 8

// Of returns a short hex BLAKE2b-256 digest of phone.
func Of(phone string) string {
	sum := blake2b.Sum256([]byte(phone))
	return hex.EncodeToString(sum[:refBytes])
}

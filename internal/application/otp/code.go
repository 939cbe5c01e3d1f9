package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const codeSpace = 1_000_000

// RandomCode draws a uniformly random 6-digit code, zero-padded.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Message renders the SMS body for code.
func Message(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your CIMS verification code is: %s. Valid for %s.", code, humanTTL(ttl))
}

func humanTTL(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}
	if m := int(d / time.Minute); m != 1 {
		return fmt.Sprintf("%d minutes", m)
	}
	return "1 minute"
}

package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes keep digests of different record kinds from colliding.
// The version suffix allows the algorithm to change without ambiguity.
const (
	DomainValidation = "lifelog/validation/v1"
	DomainAdherence  = "lifelog/adherence/v1"
)

// Sum canonicalizes v and returns the hex SHA-256 of domain || 0x00 || canonical(v).
func Sum(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustSum is like Sum but panics on error.
// Use only in tests or when inputs are known to be canonicalizable.
func MustSum(domain string, v any) string {
	sum, err := Sum(domain, v)
	if err != nil {
		panic(err)
	}
	return sum
}

// Verify recomputes the checksum of v and compares it to expected.
func Verify(domain string, v any, expected string) (bool, error) {
	actual, err := Sum(domain, v)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

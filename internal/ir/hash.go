package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainPlan   = "crawlplan/plan/v1"
	DomainRecord = "crawlplan/record/v1"
)

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordHash returns the fingerprint of a record's canonical encoding.
func RecordHash(obj IRObject) (string, error) {
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", err
	}
	return HashWithDomain(DomainRecord, data), nil
}

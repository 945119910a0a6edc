package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainExpr   = "treeq/expr/v1"
	DomainResult = "treeq/result/v1"
)

// HashWithDomain computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ResultHash returns the content hash of r's canonical key.
// Results that are Equal hash identically.
func ResultHash(r Result) string {
	return HashWithDomain(DomainResult, CanonicalKey(r))
}

package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSupport = "factlog/support/v1"
	DomainBatch   = "factlog/batch/v1"
	DomainProgram = "factlog/program/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SupportID computes a stable identifier for a support of the given fact.
// Explanations use it to name proof steps.
func SupportID(f Fact, s Support) (string, error) {
	var buf bytes.Buffer
	head, err := MarshalFact(f)
	if err != nil {
		return "", fmt.Errorf("SupportID: %w", err)
	}
	bindings, err := MarshalTuple(s.Bindings)
	if err != nil {
		return "", fmt.Errorf("SupportID: %w", err)
	}
	buf.Write(head)
	buf.WriteByte(0x00)
	buf.WriteString(s.Rule)
	buf.WriteByte(0x00)
	buf.Write(bindings)
	return hashWithDomain(DomainSupport, buf.Bytes()), nil
}

// BatchChecksum hashes an ordered batch of retractions and additions.
// The journal stores it to detect tampering or truncation on replay.
func BatchChecksum(added, retracted []Fact) (string, error) {
	var buf bytes.Buffer
	for _, group := range []struct {
		tag   byte
		facts []Fact
	}{{'-', retracted}, {'+', added}} {
		for _, f := range group.facts {
			b, err := MarshalFact(f)
			if err != nil {
				return "", fmt.Errorf("BatchChecksum: %w", err)
			}
			buf.WriteByte(group.tag)
			buf.Write(b)
			buf.WriteByte('\n')
		}
	}
	return hashWithDomain(DomainBatch, buf.Bytes()), nil
}

// ProgramHash fingerprints a rule set by its rendered rules in order.
func ProgramHash(rules []Rule) string {
	var buf bytes.Buffer
	for _, r := range rules {
		buf.WriteString(r.String())
		buf.WriteByte('\n')
	}
	return hashWithDomain(DomainProgram, buf.Bytes())
}

// MustSupportID is like SupportID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSupportID(f Fact, s Support) string {
	id, err := SupportID(f, s)
	if err != nil {
		panic(err)
	}
	return id
}

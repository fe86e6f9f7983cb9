package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the hashed shape to change without collisions.
const (
	DomainProposal = "safeprop/proposal/v1"
	DomainSource   = "safeprop/source/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProposalID identifies "annotate target in unit with label".
// The same proposal computed on a later run of unchanged source gets the same
// ID, which is what makes history writes idempotent.
func ProposalID(unitPath, target, label, sourceHash string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"unit":        unitPath,
		"target":      target,
		"label":       label,
		"source_hash": sourceHash,
	})
	if err != nil {
		return "", fmt.Errorf("ProposalID: %w", err)
	}
	return hashWithDomain(DomainProposal, canonical), nil
}

// SourceHash fingerprints a unit's source text.
func SourceHash(source string) string {
	return hashWithDomain(DomainSource, []byte(source))
}

// MustProposalID is ProposalID that panics on error. Tests only.
func MustProposalID(unitPath, target, label, sourceHash string) string {
	id, err := ProposalID(unitPath, target, label, sourceHash)
	if err != nil {
		panic(err)
	}
	return id
}

package domain

import (
	"sort"
	"strings"
	"time"
)

type EvidenceLevel string

const (
	EvidenceBasic    EvidenceLevel = "basic"
	EvidenceEnhanced EvidenceLevel = "enhanced"
	EvidenceForensic EvidenceLevel = "forensic"
	EvidenceLegal    EvidenceLevel = "legal"
)

func (l EvidenceLevel) Valid() bool {
	switch l {
	case EvidenceBasic, EvidenceEnhanced, EvidenceForensic, EvidenceLegal:
		return true
	default:
		return false
	}
}

// EvidenceLevels lists the levels from least to most rigorous.
var EvidenceLevels = []EvidenceLevel{EvidenceBasic, EvidenceEnhanced, EvidenceForensic, EvidenceLegal}

type LegalWeight string

const (
	LegalWeightInformational LegalWeight = "informational"
	LegalWeightEvidence      LegalWeight = "evidence"
	LegalWeightCertified     LegalWeight = "certified"
	LegalWeightNotarized     LegalWeight = "notarized"
)

func (w LegalWeight) Valid() bool {
	switch w {
	case LegalWeightInformational, LegalWeightEvidence, LegalWeightCertified, LegalWeightNotarized:
		return true
	default:
		return false
	}
}

// LegalWeightFor maps the rigor of the underlying notarization to the legal
// standing claimed by the certificate.
func LegalWeightFor(level EvidenceLevel) LegalWeight {
	switch level {
	case EvidenceEnhanced:
		return LegalWeightEvidence
	case EvidenceForensic:
		return LegalWeightCertified
	case EvidenceLegal:
		return LegalWeightNotarized
	default:
		return LegalWeightInformational
	}
}

// CertificateRecord is immutable once signed. DigitalSignature is computed over
// every other field and is never part of its own signing input.
type CertificateRecord struct {
	CertificateID    string        `json:"certificateId"`
	NotarizationID   string        `json:"notarizationId"`
	CapsuleID        string        `json:"capsuleId"`
	ContentHash      string        `json:"contentHash"`
	ExternalTxRef    string        `json:"externalTxRef"`
	IssuedBy         string        `json:"issuedBy"`
	IssuedAt         time.Time     `json:"issuedAt"`
	ValidUntil       time.Time     `json:"validUntil"`
	WitnessCount     int           `json:"witnessCount"`
	EvidenceLevel    EvidenceLevel `json:"evidenceLevel"`
	Jurisdictions    []string      `json:"jurisdictions"`
	LegalWeight      LegalWeight   `json:"legalWeight"`
	PublicKeyID      string        `json:"publicKeyId"`
	DigitalSignature string        `json:"digitalSignature,omitempty"`
}

// Expired reports whether now is past ValidUntil.
func (r CertificateRecord) Expired(now time.Time) bool {
	return now.After(r.ValidUntil)
}

type CertificateState string

const (
	StateIssued  CertificateState = "issued"
	StateRevoked CertificateState = "revoked"
	StateExpired CertificateState = "expired"
)

type Issuance struct {
	RequestedBy string `json:"requestedBy"`
	Purpose     string `json:"purpose,omitempty"`
}

type Revocation struct {
	RevokedAt time.Time `json:"revokedAt"`
	RevokedBy string    `json:"revokedBy"`
	Reason    string    `json:"reason,omitempty"`
}

// StoredCertificate is what the record store keeps per certificate id. Record
// is write-once; Revocation is the only field that may change, and only once.
type StoredCertificate struct {
	Record     CertificateRecord `json:"record"`
	Issuance   Issuance          `json:"issuance"`
	Revocation *Revocation       `json:"revocation,omitempty"`
}

// State derives the lifecycle state at query time. Expired is never stored.
func (s StoredCertificate) State(now time.Time) CertificateState {
	if s.Revocation != nil {
		return StateRevoked
	}
	if s.Record.Expired(now) {
		return StateExpired
	}
	return StateIssued
}

// NormalizeJurisdictions trims, de-duplicates and sorts a jurisdiction set so
// that two equal sets always encode identically.
func NormalizeJurisdictions(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, j := range in {
		j = strings.TrimSpace(j)
		if j == "" {
			continue
		}
		if _, ok := seen[j]; ok {
			continue
		}
		seen[j] = struct{}{}
		out = append(out, j)
	}
	sort.Strings(out)
	return out
}

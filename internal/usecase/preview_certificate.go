package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"truthcert/internal/domain"
)

// PreviewFeatures lists what an issued certificate document contains.
var PreviewFeatures = []string{
	"Fixed-layout PDF certificate",
	"External ledger transaction reference",
	"HMAC-SHA256 digital signature",
	"Chain-of-custody event table",
	"Legal attestation and jurisdictions",
	"Content hash binding",
	"Verification URL",
}

// PreviewSecurityFeatures lists the tamper protections of an issued document.
var PreviewSecurityFeatures = []string{
	"SHA-256 content and evidence hashes",
	"External ledger timestamp confirmation",
	"Keyed signature over the canonical record",
	"Embedded signature for offline inspection",
	"Chain-of-custody cross-reference",
}

type PreviewMetadata struct {
	IssuedAt      time.Time            `json:"issuedAt"`
	ValidUntil    time.Time            `json:"validUntil"`
	EvidenceLevel domain.EvidenceLevel `json:"evidenceLevel"`
	LegalWeight   domain.LegalWeight   `json:"legalWeight"`
	Jurisdictions []string             `json:"jurisdictions"`
	WitnessCount  int                  `json:"witnessCount"`
}

type Preview struct {
	CertificateID    string          `json:"certificateId"`
	NotarizationID   string          `json:"notarizationId"`
	PreviewURL       string          `json:"previewUrl"`
	DownloadURL      string          `json:"downloadUrl"`
	VerificationURL  string          `json:"verificationUrl"`
	Metadata         PreviewMetadata `json:"metadata"`
	Features         []string        `json:"features"`
	SecurityFeatures []string        `json:"securityFeatures"`
}

// PreviewCertificate describes the certificate an issue request would produce
// without signing or recording anything.
type PreviewCertificate struct {
	Builder *CertificateBuilder
	BaseURL string
}

func (s *PreviewCertificate) Execute(ctx context.Context, notarizationID string) (Preview, error) {
	if s == nil || s.Builder == nil || s.Builder.Lookup == nil {
		return Preview{}, errors.New("preview certificate not configured")
	}
	notarizationID = strings.TrimSpace(notarizationID)
	if notarizationID == "" {
		return Preview{}, fmt.Errorf("%w: notarizationId is required", domain.ErrValidation)
	}
	rec, err := s.Builder.resolve(ctx, notarizationID)
	if err != nil {
		return Preview{}, err
	}

	issuedAt := s.Builder.Clock.now().Truncate(time.Microsecond)
	validity := s.Builder.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}
	id := fmt.Sprintf("CERT_%X_PREVIEW", issuedAt.UnixMilli())
	base := strings.TrimRight(s.BaseURL, "/")

	return Preview{
		CertificateID:   id,
		NotarizationID:  rec.NotarizationID,
		PreviewURL:      base + "/v1/certificates/preview/" + url.PathEscape(rec.NotarizationID),
		DownloadURL:     base + "/v1/certificates:issue",
		VerificationURL: domain.VerificationURL(base, id),
		Metadata: PreviewMetadata{
			IssuedAt:      issuedAt,
			ValidUntil:    issuedAt.Add(validity),
			EvidenceLevel: rec.EvidenceLevel,
			LegalWeight:   domain.LegalWeightFor(rec.EvidenceLevel),
			Jurisdictions: domain.NormalizeJurisdictions(rec.Jurisdictions),
			WitnessCount:  rec.WitnessCount,
		},
		Features:         append([]string(nil), PreviewFeatures...),
		SecurityFeatures: append([]string(nil), PreviewSecurityFeatures...),
	}, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"truthcert/internal/domain"
)

type VerifyRequest struct {
	CertificateID    string `json:"certificateId"`
	DigitalSignature string `json:"digitalSignature"`
}

const (
	weightSignature      = 35
	weightExternalRecord = 20
	weightCustody        = 15
	weightIssuer         = 10
	weightNotExpired     = 10
	weightNotRevoked     = 10
)

var evidenceFactor = map[domain.EvidenceLevel]float64{
	domain.EvidenceBasic:    0.85,
	domain.EvidenceEnhanced: 0.90,
	domain.EvidenceForensic: 0.95,
	domain.EvidenceLegal:    1.0,
}

// VerifyCertificate is read-only: it never writes to the store or the ledger.
// The record and its custody come from one Snapshot, so a concurrent revoke
// is seen either entirely or not at all.
type VerifyCertificate struct {
	Store         CertificateRepository
	Signer        SignatureEngine
	Keys          domain.Keyring
	Policy        domain.IssuerPolicy
	AllowedKeyIDs []string
	Metrics       Metrics
	Clock         Clock
}

func (s *VerifyCertificate) Execute(ctx context.Context, req VerifyRequest) (domain.VerificationReport, error) {
	if s == nil || s.Store == nil || s.Signer == nil || s.Keys == nil {
		return domain.VerificationReport{}, errors.New("verify certificate not configured")
	}
	req.CertificateID = strings.TrimSpace(req.CertificateID)
	req.DigitalSignature = strings.TrimSpace(req.DigitalSignature)
	if req.CertificateID == "" || req.DigitalSignature == "" {
		return domain.VerificationReport{}, fmt.Errorf("%w: certificateId and digitalSignature are required", domain.ErrValidation)
	}
	now := s.Clock.now()

	cert, history, err := s.Store.Snapshot(ctx, req.CertificateID)
	if errors.Is(err, domain.ErrNotFound) {
		report := domain.VerificationReport{
			CertificateID: req.CertificateID,
			Status:        domain.StatusNotFound,
			LegalStatus:   domain.LegalStatusInvalid,
			VerifiedAt:    now,
		}
		s.observe(report.Status)
		return report, nil
	}
	if err != nil {
		return domain.VerificationReport{}, err
	}
	record := cert.Record

	signatureValid, err := s.Signer.Verify(ctx, record, req.DigitalSignature)
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			return domain.VerificationReport{}, err
		}
		signatureValid = false
	}
	chain := domain.ChainOfCustody(history)
	issuerAuthorized, err := s.issuerAuthorized(ctx, record)
	if err != nil {
		return domain.VerificationReport{}, err
	}

	checklist := domain.VerificationChecklist{
		SignatureValid:          signatureValid,
		ExternalRecordConfirmed: externalRecordConfirmed(record, chain),
		NotExpired:              !record.Expired(now),
		IssuerAuthorized:        issuerAuthorized,
		CustodyIntact:           custodyIntact(cert, chain),
		NotRevoked:              cert.Revocation == nil,
	}
	report := domain.VerificationReport{
		CertificateID: record.CertificateID,
		IsValid:       checklist.All(),
		Status:        statusFor(checklist),
		Checklist:     checklist,
		TrustScore:    trustScore(checklist, record.EvidenceLevel),
		LegalStatus:   domain.LegalStatusInvalid,
		EvidenceLevel: record.EvidenceLevel,
		LegalWeight:   record.LegalWeight,
		VerifiedAt:    now,
	}
	if report.IsValid {
		report.LegalStatus = domain.LegalStatusValid
	}
	s.observe(report.Status)
	return report, nil
}

func (s *VerifyCertificate) issuerAuthorized(ctx context.Context, record domain.CertificateRecord) (bool, error) {
	status := "unknown"
	key, err := s.Keys.Key(ctx, record.PublicKeyID)
	switch {
	case err == nil:
		status = string(key.Status)
	case !errors.Is(err, domain.ErrKeyUnknown):
		return false, err
	}

	allowed := s.AllowedKeyIDs
	if len(allowed) == 0 {
		keys, err := s.Keys.List(ctx)
		if err != nil {
			return false, err
		}
		allowed = make([]string, 0, len(keys))
		for _, k := range keys {
			allowed = append(allowed, k.ID)
		}
	}
	input := domain.IssuerPolicyInput{
		PublicKeyID:   record.PublicKeyID,
		KeyStatus:     status,
		AllowedKeyIDs: allowed,
		IssuedBy:      record.IssuedBy,
	}
	if s.Policy == nil {
		return defaultIssuerDecision(input), nil
	}
	result, err := s.Policy.Evaluate(ctx, input)
	if err != nil {
		return false, fmt.Errorf("issuer policy: %w", err)
	}
	return result.Allow, nil
}

// defaultIssuerDecision mirrors the built-in issuer policy.
func defaultIssuerDecision(input domain.IssuerPolicyInput) bool {
	if input.KeyStatus == "unknown" || input.KeyStatus == string(domain.KeyStatusRevoked) {
		return false
	}
	for _, id := range input.AllowedKeyIDs {
		if id == input.PublicKeyID {
			return true
		}
	}
	return false
}

func (s *VerifyCertificate) observe(status domain.VerificationStatus) {
	if s.Metrics != nil {
		s.Metrics.CertificateVerified(string(status))
	}
}

// statusFor reports the most severe failed check.
func statusFor(c domain.VerificationChecklist) domain.VerificationStatus {
	switch {
	case !c.SignatureValid:
		return domain.StatusTampered
	case !c.NotRevoked:
		return domain.StatusRevoked
	case !c.NotExpired:
		return domain.StatusExpired
	case !c.IssuerAuthorized:
		return domain.StatusUnauthorizedIssuer
	case !c.ExternalRecordConfirmed:
		return domain.StatusUnconfirmed
	case !c.CustodyIntact:
		return domain.StatusCustodyBroken
	default:
		return domain.StatusValid
	}
}

func trustScore(c domain.VerificationChecklist, level domain.EvidenceLevel) int {
	sum := 0
	if c.SignatureValid {
		sum += weightSignature
	}
	if c.ExternalRecordConfirmed {
		sum += weightExternalRecord
	}
	if c.CustodyIntact {
		sum += weightCustody
	}
	if c.IssuerAuthorized {
		sum += weightIssuer
	}
	if c.NotExpired {
		sum += weightNotExpired
	}
	if c.NotRevoked {
		sum += weightNotRevoked
	}
	factor, ok := evidenceFactor[level]
	if !ok {
		factor = evidenceFactor[domain.EvidenceBasic]
	}
	return int(math.Round(float64(sum) * factor))
}

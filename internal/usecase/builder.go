package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"truthcert/internal/domain"
)

const (
	DefaultValidity    = 365 * 24 * time.Hour
	DefaultRequestedBy = "Certificate Holder"
)

type IssueRequest struct {
	NotarizationID string `json:"notarizationId"`
	CapsuleID      string `json:"capsuleId"`
	RequestedBy    string `json:"requestedBy"`
	Purpose        string `json:"purpose"`
}

// CertificateBuilder assembles unsigned certificate records from resolved
// notarizations. It has no side effects beyond the lookup.
type CertificateBuilder struct {
	Lookup        domain.NotarizationLookup
	Keys          domain.Keyring
	IssuerName    string
	Validity      time.Duration
	LookupTimeout time.Duration
	Clock         Clock
	Random        io.Reader
}

func (b *CertificateBuilder) Build(ctx context.Context, req IssueRequest) (domain.CertificateRecord, domain.Issuance, error) {
	if b == nil || b.Lookup == nil || b.Keys == nil {
		return domain.CertificateRecord{}, domain.Issuance{}, errors.New("certificate builder not configured")
	}
	req = normalizeRequest(req)
	if req.NotarizationID == "" {
		return domain.CertificateRecord{}, domain.Issuance{}, fmt.Errorf("%w: notarizationId is required", domain.ErrValidation)
	}
	if req.CapsuleID == "" {
		return domain.CertificateRecord{}, domain.Issuance{}, fmt.Errorf("%w: capsuleId is required", domain.ErrValidation)
	}

	notarization, err := b.resolve(ctx, req.NotarizationID)
	if err != nil {
		return domain.CertificateRecord{}, domain.Issuance{}, err
	}

	key, err := b.Keys.Active(ctx)
	if err != nil {
		return domain.CertificateRecord{}, domain.Issuance{}, err
	}
	issuer := key.Issuer
	if issuer == "" {
		issuer = b.IssuerName
	}

	issuedAt := domain.NormalizeTime(b.Clock.now())
	id, err := b.newCertificateID(issuedAt)
	if err != nil {
		return domain.CertificateRecord{}, domain.Issuance{}, err
	}
	validity := b.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}

	record := domain.CertificateRecord{
		CertificateID:  id,
		NotarizationID: notarization.NotarizationID,
		CapsuleID:      req.CapsuleID,
		ContentHash:    notarization.ContentHash,
		ExternalTxRef:  notarization.ExternalTxRef,
		IssuedBy:       issuer,
		IssuedAt:       issuedAt,
		ValidUntil:     issuedAt.Add(validity),
		WitnessCount:   notarization.WitnessCount,
		EvidenceLevel:  notarization.EvidenceLevel,
		Jurisdictions:  domain.NormalizeJurisdictions(notarization.Jurisdictions),
		LegalWeight:    domain.LegalWeightFor(notarization.EvidenceLevel),
		PublicKeyID:    key.ID,
	}
	return record, domain.Issuance{RequestedBy: req.RequestedBy, Purpose: req.Purpose}, nil
}

// resolve looks up the notarization under the lookup timeout and rejects
// records that cannot back a certificate.
func (b *CertificateBuilder) resolve(ctx context.Context, notarizationID string) (domain.NotarizationRecord, error) {
	if b.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.LookupTimeout)
		defer cancel()
	}
	rec, err := b.Lookup.Lookup(ctx, notarizationID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.NotarizationRecord{}, fmt.Errorf("%w: %v", domain.ErrLookupTimeout, err)
		}
		return domain.NotarizationRecord{}, err
	}
	if rec.NotarizationID == "" {
		rec.NotarizationID = notarizationID
	}
	switch {
	case rec.NotarizationID != notarizationID:
		return domain.NotarizationRecord{}, fmt.Errorf("%w: notarization id mismatch", domain.ErrLookupFailure)
	case strings.TrimSpace(rec.ContentHash) == "":
		return domain.NotarizationRecord{}, fmt.Errorf("%w: notarization has no content hash", domain.ErrLookupFailure)
	case strings.TrimSpace(rec.ExternalTxRef) == "":
		return domain.NotarizationRecord{}, fmt.Errorf("%w: notarization has no external transaction", domain.ErrLookupFailure)
	case !rec.EvidenceLevel.Valid():
		return domain.NotarizationRecord{}, fmt.Errorf("%w: unknown evidence level %q", domain.ErrLookupFailure, rec.EvidenceLevel)
	case rec.WitnessCount < 0:
		return domain.NotarizationRecord{}, fmt.Errorf("%w: negative witness count", domain.ErrLookupFailure)
	}
	return rec, nil
}

func (b *CertificateBuilder) newCertificateID(issuedAt time.Time) (string, error) {
	random := b.Random
	if random == nil {
		random = rand.Reader
	}
	suffix := make([]byte, 8)
	if _, err := io.ReadFull(random, suffix); err != nil {
		return "", fmt.Errorf("certificate id entropy: %w", err)
	}
	return fmt.Sprintf("CERT_%X_%s", issuedAt.UnixMilli(), strings.ToUpper(hex.EncodeToString(suffix))), nil
}

func normalizeRequest(req IssueRequest) IssueRequest {
	req.NotarizationID = strings.TrimSpace(req.NotarizationID)
	req.CapsuleID = strings.TrimSpace(req.CapsuleID)
	req.RequestedBy = strings.TrimSpace(req.RequestedBy)
	req.Purpose = strings.TrimSpace(req.Purpose)
	if req.RequestedBy == "" {
		req.RequestedBy = DefaultRequestedBy
	}
	return req
}

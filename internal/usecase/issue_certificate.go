package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"truthcert/internal/domain"
	"truthcert/internal/observability/logger"
)

type IssuedCertificate struct {
	Certificate domain.StoredCertificate
	Custody     domain.ChainOfCustody
	Document    []byte
}

// IssueCertificate runs the issuance pipeline. The commit of record and
// custody events is the point after which the certificate exists; a later
// render failure is returned alongside the committed certificate.
type IssueCertificate struct {
	Builder             *CertificateBuilder
	Confirmer           domain.LedgerConfirmer
	Signer              SignatureEngine
	Store               CertificateRepository
	Sink                domain.CustodyEventSink
	Renderer            DocumentRenderer
	Metrics             Metrics
	Clock               Clock
	LookupTimeout       time.Duration
	VerificationBaseURL string
}

func (s *IssueCertificate) Execute(ctx context.Context, req IssueRequest) (IssuedCertificate, error) {
	if s == nil || s.Builder == nil || s.Confirmer == nil || s.Signer == nil || s.Store == nil {
		return IssuedCertificate{}, errors.New("issue certificate not configured")
	}
	var stamps issuanceStamps
	stamps.requested = s.Clock.now()

	record, issuance, err := s.Builder.Build(ctx, req)
	if err != nil {
		return IssuedCertificate{}, err
	}
	stamps.verified = s.Clock.now()

	confirmation, err := s.confirm(ctx, record.ExternalTxRef)
	if err != nil {
		return IssuedCertificate{}, err
	}
	stamps.confirmed = s.Clock.now()

	signature, err := s.Signer.Sign(ctx, record)
	if err != nil {
		return IssuedCertificate{}, fmt.Errorf("sign certificate: %w", err)
	}
	record.DigitalSignature = signature
	stamps.generated = s.Clock.now()

	events, err := issuanceEvents(record, issuance, confirmation, stamps)
	if err != nil {
		return IssuedCertificate{}, err
	}
	cert := domain.StoredCertificate{Record: record, Issuance: issuance}
	committed, err := s.Store.Issue(ctx, cert, events)
	if err != nil {
		return IssuedCertificate{}, fmt.Errorf("commit certificate: %w", err)
	}
	if s.Metrics != nil {
		s.Metrics.CertificateIssued(string(record.EvidenceLevel))
	}

	log := logger.From(ctx).With(
		logger.CertificateID(record.CertificateID),
		logger.NotarizationID(record.NotarizationID),
		logger.KeyID(record.PublicKeyID),
	)
	log.Info("certificate issued", zap.String("evidence_level", string(record.EvidenceLevel)))

	if s.Sink != nil {
		if err := s.Sink.Publish(ctx, record.CertificateID, committed); err != nil {
			log.Warn("custody event publish failed", zap.Error(err))
		}
	}

	out := IssuedCertificate{Certificate: cert, Custody: committed}
	if s.Renderer == nil {
		return out, nil
	}
	renderedAt := stamps.generated
	if n := len(committed); n > 0 {
		renderedAt = committed[n-1].Timestamp
	}
	doc, err := s.Renderer.Render(record, committed, domain.RenderOptions{
		RenderedAt:          renderedAt,
		VerificationBaseURL: s.VerificationBaseURL,
		Issuance:            issuance,
	})
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.RenderFailed()
		}
		log.Error("certificate render failed", zap.Error(err))
		if !errors.Is(err, domain.ErrRender) {
			err = fmt.Errorf("%w: %v", domain.ErrRender, err)
		}
		return out, err
	}
	out.Document = doc
	return out, nil
}

func (s *IssueCertificate) confirm(ctx context.Context, txRef string) (domain.LedgerConfirmation, error) {
	if s.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.LookupTimeout)
		defer cancel()
	}
	confirmation, err := s.Confirmer.Confirm(ctx, txRef)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.LedgerConfirmation{}, fmt.Errorf("%w: ledger confirmation: %v", domain.ErrLookupTimeout, err)
		}
		return domain.LedgerConfirmation{}, err
	}
	if !confirmation.Confirmed || strings.TrimSpace(confirmation.BlockReference) == "" {
		return domain.LedgerConfirmation{}, fmt.Errorf("%w: transaction %s is not confirmed", domain.ErrLookupFailure, txRef)
	}
	return confirmation, nil
}

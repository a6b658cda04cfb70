package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"truthcert/internal/domain"
)

// CertificateDocument re-renders and inspects committed certificates.
type CertificateDocument struct {
	Store               CertificateRepository
	Renderer            DocumentRenderer
	Metrics             Metrics
	VerificationBaseURL string
}

func (s *CertificateDocument) Custody(ctx context.Context, certificateID string) (domain.StoredCertificate, domain.ChainOfCustody, error) {
	if s == nil || s.Store == nil {
		return domain.StoredCertificate{}, nil, errors.New("certificate document not configured")
	}
	certificateID = strings.TrimSpace(certificateID)
	if certificateID == "" {
		return domain.StoredCertificate{}, nil, fmt.Errorf("%w: certificateId is required", domain.ErrValidation)
	}
	cert, history, err := s.Store.Snapshot(ctx, certificateID)
	if err != nil {
		return domain.StoredCertificate{}, nil, err
	}
	return cert, domain.ChainOfCustody(history), nil
}

// Render produces the document from stored data. The current custody history
// is included, so a revoked certificate renders its revocation event.
func (s *CertificateDocument) Render(ctx context.Context, certificateID string) (domain.StoredCertificate, []byte, error) {
	if s == nil || s.Renderer == nil {
		return domain.StoredCertificate{}, nil, errors.New("certificate document not configured")
	}
	cert, chain, err := s.Custody(ctx, certificateID)
	if err != nil {
		return domain.StoredCertificate{}, nil, err
	}
	renderedAt := cert.Record.IssuedAt
	if n := len(chain); n > 0 {
		renderedAt = chain[n-1].Timestamp
	}
	doc, err := s.Renderer.Render(cert.Record, chain, domain.RenderOptions{
		RenderedAt:          renderedAt,
		VerificationBaseURL: s.VerificationBaseURL,
		Issuance:            cert.Issuance,
	})
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.RenderFailed()
		}
		return cert, nil, err
	}
	return cert, doc, nil
}

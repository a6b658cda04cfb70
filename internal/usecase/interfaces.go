package usecase

import (
	"context"
	"time"

	"truthcert/internal/domain"
)

// CertificateRepository stores certificate records together with their
// custody events. Issue and Revoke are atomic across both, and Snapshot reads
// both as of one consistent point.
type CertificateRepository interface {
	Issue(ctx context.Context, cert domain.StoredCertificate, events []domain.CustodyEvent) ([]domain.CustodyEvent, error)
	Get(ctx context.Context, certificateID string) (domain.StoredCertificate, error)
	Snapshot(ctx context.Context, certificateID string) (domain.StoredCertificate, []domain.CustodyEvent, error)
	Revoke(ctx context.Context, certificateID string, rev domain.Revocation, event domain.CustodyEvent) (domain.CustodyEvent, error)
	StatsRows(ctx context.Context) ([]domain.StatsRow, error)
}

type SignatureEngine interface {
	Sign(ctx context.Context, record domain.CertificateRecord) (string, error)
	Verify(ctx context.Context, record domain.CertificateRecord, signature string) (bool, error)
}

type DocumentRenderer interface {
	Render(record domain.CertificateRecord, custody domain.ChainOfCustody, opts domain.RenderOptions) ([]byte, error)
}

// Metrics receives domain counters. A nil Metrics is allowed everywhere.
type Metrics interface {
	CertificateIssued(level string)
	CertificateVerified(status string)
	CertificateRevoked()
	RenderFailed()
}

type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

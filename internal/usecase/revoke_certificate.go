package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"truthcert/internal/domain"
	"truthcert/internal/observability/logger"
)

type RevokeRequest struct {
	CertificateID string `json:"certificateId"`
	RevokedBy     string `json:"revokedBy"`
	Reason        string `json:"reason"`
}

// RevokeCertificate moves an issued certificate to revoked. The transition is
// terminal and is recorded as a custody event in the same commit.
type RevokeCertificate struct {
	Store   CertificateRepository
	Sink    domain.CustodyEventSink
	Metrics Metrics
	Clock   Clock
}

func (s *RevokeCertificate) Execute(ctx context.Context, req RevokeRequest) (domain.Revocation, domain.CustodyEvent, error) {
	if s == nil || s.Store == nil {
		return domain.Revocation{}, domain.CustodyEvent{}, errors.New("revoke certificate not configured")
	}
	req.CertificateID = strings.TrimSpace(req.CertificateID)
	req.RevokedBy = strings.TrimSpace(req.RevokedBy)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.CertificateID == "" {
		return domain.Revocation{}, domain.CustodyEvent{}, fmt.Errorf("%w: certificateId is required", domain.ErrValidation)
	}
	if req.RevokedBy == "" {
		return domain.Revocation{}, domain.CustodyEvent{}, fmt.Errorf("%w: revokedBy is required", domain.ErrValidation)
	}

	now := domain.NormalizeTime(s.Clock.now())
	rev := domain.Revocation{RevokedAt: now, RevokedBy: req.RevokedBy, Reason: req.Reason}
	evidence, err := revocationEvidence(req.CertificateID, rev)
	if err != nil {
		return domain.Revocation{}, domain.CustodyEvent{}, err
	}
	event := domain.CustodyEvent{
		Timestamp:    now,
		Kind:         domain.EventCertificateRevoked,
		Actor:        req.RevokedBy,
		EvidenceHash: evidence,
	}
	committed, err := s.Store.Revoke(ctx, req.CertificateID, rev, event)
	if err != nil {
		return domain.Revocation{}, domain.CustodyEvent{}, err
	}
	if s.Metrics != nil {
		s.Metrics.CertificateRevoked()
	}
	log := logger.From(ctx).With(logger.CertificateID(req.CertificateID))
	log.Info("certificate revoked", zap.String("revoked_by", req.RevokedBy))
	if s.Sink != nil {
		if err := s.Sink.Publish(ctx, req.CertificateID, []domain.CustodyEvent{committed}); err != nil {
			log.Warn("custody event publish failed", zap.Error(err))
		}
	}
	return rev, committed, nil
}

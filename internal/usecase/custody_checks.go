package usecase

import (
	"time"

	"truthcert/internal/domain"
)

// requestEvidence hashes the audit fields of an issuance request.
func requestEvidence(record domain.CertificateRecord, issuance domain.Issuance) (string, error) {
	return domain.HashObject(
		domain.Field{Key: "notarization_id", Value: record.NotarizationID},
		domain.Field{Key: "capsule_id", Value: record.CapsuleID},
		domain.Field{Key: "requested_by", Value: issuance.RequestedBy},
		domain.Field{Key: "purpose", Value: issuance.Purpose},
	)
}

func revocationEvidence(certificateID string, rev domain.Revocation) (string, error) {
	return domain.HashObject(
		domain.Field{Key: "certificate_id", Value: certificateID},
		domain.Field{Key: "reason", Value: rev.Reason},
		domain.Field{Key: "revoked_at", Value: rev.RevokedAt},
	)
}

// issuanceStamps are the times at which each issuance stage completed.
type issuanceStamps struct {
	requested time.Time
	verified  time.Time
	confirmed time.Time
	generated time.Time
}

// issuanceEvents builds the four canonical custody events for a signed record.
func issuanceEvents(record domain.CertificateRecord, issuance domain.Issuance, confirmation domain.LedgerConfirmation, at issuanceStamps) ([]domain.CustodyEvent, error) {
	evidence, err := requestEvidence(record, issuance)
	if err != nil {
		return nil, err
	}
	return []domain.CustodyEvent{
		{
			Timestamp:    at.requested,
			Kind:         domain.EventCertificateRequest,
			Actor:        issuance.RequestedBy,
			EvidenceHash: evidence,
		},
		{
			Timestamp:    at.verified,
			Kind:         domain.EventContentVerification,
			Actor:        domain.ActorValidator,
			EvidenceHash: record.ContentHash,
		},
		{
			Timestamp:      at.confirmed,
			Kind:           domain.EventExternalRecordConfirmed,
			Actor:          domain.ActorLedgerService,
			EvidenceHash:   record.ExternalTxRef,
			BlockReference: confirmation.BlockReference,
		},
		{
			Timestamp:    at.generated,
			Kind:         domain.EventCertificateGenerated,
			Actor:        domain.ActorCertificateAuthority,
			EvidenceHash: record.DigitalSignature,
		},
	}, nil
}

// externalRecordConfirmed reports whether custody holds a ledger confirmation
// for the record's transaction with a block reference.
func externalRecordConfirmed(record domain.CertificateRecord, chain domain.ChainOfCustody) bool {
	ev, ok := chain.Find(domain.EventExternalRecordConfirmed)
	if !ok {
		return false
	}
	return ev.EvidenceHash == record.ExternalTxRef && ev.BlockReference != ""
}

// custodyIntact checks the canonical issuance order, sequence and timestamp
// monotonicity, and every evidence hash that can be recomputed from stored data.
func custodyIntact(cert domain.StoredCertificate, chain domain.ChainOfCustody) bool {
	if len(chain) < len(domain.IssuanceSequence) {
		return false
	}
	var last domain.CustodyEvent
	for i, ev := range chain {
		if i > 0 && (ev.Seq <= last.Seq || ev.Timestamp.Before(last.Timestamp)) {
			return false
		}
		last = ev
	}
	for i, kind := range domain.IssuanceSequence {
		if chain[i].Kind != kind {
			return false
		}
	}

	record := cert.Record
	request, err := requestEvidence(record, cert.Issuance)
	if err != nil {
		return false
	}
	expected := []struct {
		actor    string
		evidence string
	}{
		{cert.Issuance.RequestedBy, request},
		{domain.ActorValidator, record.ContentHash},
		{domain.ActorLedgerService, record.ExternalTxRef},
		{domain.ActorCertificateAuthority, record.DigitalSignature},
	}
	for i, want := range expected {
		if chain[i].Actor != want.actor || chain[i].EvidenceHash != want.evidence {
			return false
		}
	}

	revocations := 0
	for _, ev := range chain[len(domain.IssuanceSequence):] {
		if ev.Kind != domain.EventCertificateRevoked {
			return false
		}
		revocations++
		if cert.Revocation == nil || revocations > 1 {
			return false
		}
		evidence, err := revocationEvidence(record.CertificateID, *cert.Revocation)
		if err != nil || ev.EvidenceHash != evidence || ev.Actor != cert.Revocation.RevokedBy {
			return false
		}
	}
	return cert.Revocation == nil || revocations == 1
}

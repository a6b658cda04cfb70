package crypto

import (
	"fmt"

	"truthcert/internal/domain"
)

// RecordVersion tags the canonical encoding of a certificate record. Changing
// field order or formatting requires a new version.
const RecordVersion = "truthcert_record_v1"

// Canonicalize encodes every field of the record except DigitalSignature.
func Canonicalize(record domain.CertificateRecord) ([]byte, error) {
	if err := validateRecord(record); err != nil {
		return nil, err
	}
	return domain.CanonicalObject(
		domain.Field{Key: "v", Value: RecordVersion},
		domain.Field{Key: "certificate_id", Value: record.CertificateID},
		domain.Field{Key: "notarization_id", Value: record.NotarizationID},
		domain.Field{Key: "capsule_id", Value: record.CapsuleID},
		domain.Field{Key: "content_hash", Value: record.ContentHash},
		domain.Field{Key: "external_tx_ref", Value: record.ExternalTxRef},
		domain.Field{Key: "issued_by", Value: record.IssuedBy},
		domain.Field{Key: "issued_at", Value: record.IssuedAt},
		domain.Field{Key: "valid_until", Value: record.ValidUntil},
		domain.Field{Key: "witness_count", Value: record.WitnessCount},
		domain.Field{Key: "evidence_level", Value: string(record.EvidenceLevel)},
		domain.Field{Key: "jurisdictions", Value: domain.NormalizeJurisdictions(record.Jurisdictions)},
		domain.Field{Key: "legal_weight", Value: string(record.LegalWeight)},
		domain.Field{Key: "public_key_id", Value: record.PublicKeyID},
	)
}

func validateRecord(r domain.CertificateRecord) error {
	required := []struct {
		name  string
		value string
	}{
		{"certificate_id", r.CertificateID},
		{"notarization_id", r.NotarizationID},
		{"capsule_id", r.CapsuleID},
		{"content_hash", r.ContentHash},
		{"external_tx_ref", r.ExternalTxRef},
		{"issued_by", r.IssuedBy},
		{"public_key_id", r.PublicKeyID},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrValidation, field.name)
		}
	}
	if r.IssuedAt.IsZero() || r.ValidUntil.IsZero() {
		return fmt.Errorf("%w: issued_at and valid_until are required", domain.ErrValidation)
	}
	if !r.ValidUntil.After(r.IssuedAt) {
		return fmt.Errorf("%w: valid_until must be after issued_at", domain.ErrValidation)
	}
	if r.WitnessCount < 0 {
		return fmt.Errorf("%w: witness_count must not be negative", domain.ErrValidation)
	}
	if !r.EvidenceLevel.Valid() {
		return fmt.Errorf("%w: unknown evidence_level %q", domain.ErrValidation, r.EvidenceLevel)
	}
	if !r.LegalWeight.Valid() {
		return fmt.Errorf("%w: unknown legal_weight %q", domain.ErrValidation, r.LegalWeight)
	}
	return nil
}

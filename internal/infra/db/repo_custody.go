package db

import (
	"context"
	"fmt"
	"time"

	"truthcert/internal/domain"
	"truthcert/internal/infra/custody"

	"gorm.io/gorm"
)

// custodyHistory reads a certificate's events oldest first. Run it inside
// the same transaction as the certificate read to get a consistent view.
func custodyHistory(ctx context.Context, tx *gorm.DB, certificateID string) ([]domain.CustodyEvent, error) {
	var models []CustodyEventModel
	if err := tx.WithContext(ctx).
		Where("certificate_id = ?", certificateID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CustodyEvent, 0, len(models))
	for _, model := range models {
		out = append(out, custodyEventFromModel(model))
	}
	return out, nil
}

type custodyCursor struct {
	Seq    int64
	LastAt *time.Time
}

// appendCustody must run inside tx. It locks the certificate's sequence row,
// so appends to one certificate serialize, then validates the batch and
// inserts it.
func appendCustody(ctx context.Context, tx *gorm.DB, certificateID string, events []domain.CustodyEvent) ([]domain.CustodyEvent, error) {
	if certificateID == "" {
		return nil, fmt.Errorf("%w: certificate id is required", domain.ErrValidation)
	}
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO custody_seq (certificate_id, seq) VALUES (?, 0) ON CONFLICT (certificate_id) DO NOTHING",
		certificateID,
	).Error; err != nil {
		return nil, err
	}

	var cursor custodyCursor
	if err := tx.WithContext(ctx).Raw(
		"SELECT seq, last_at FROM custody_seq WHERE certificate_id = ? FOR UPDATE",
		certificateID,
	).Scan(&cursor).Error; err != nil {
		return nil, err
	}

	var last time.Time
	if cursor.LastAt != nil {
		last = cursor.LastAt.UTC()
	}
	prepared, err := custody.PrepareBatch(events, last, cursor.Seq)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	models := make([]CustodyEventModel, 0, len(prepared))
	for _, ev := range prepared {
		models = append(models, custodyEventModelFromDomain(certificateID, ev, now))
	}
	if err := tx.WithContext(ctx).Create(&models).Error; err != nil {
		return nil, err
	}

	tail := prepared[len(prepared)-1]
	if err := tx.WithContext(ctx).Exec(
		"UPDATE custody_seq SET seq = ?, last_at = ? WHERE certificate_id = ?",
		tail.Seq,
		tail.Timestamp,
		certificateID,
	).Error; err != nil {
		return nil, err
	}
	return prepared, nil
}

func custodyEventModelFromDomain(certificateID string, ev domain.CustodyEvent, createdAt time.Time) CustodyEventModel {
	return CustodyEventModel{
		ID:             newUUID(),
		CertificateID:  certificateID,
		Seq:            ev.Seq,
		OccurredAt:     ev.Timestamp,
		Kind:           string(ev.Kind),
		Actor:          ev.Actor,
		EvidenceHash:   ev.EvidenceHash,
		BlockReference: stringPtrIfNotEmpty(ev.BlockReference),
		CreatedAt:      createdAt,
	}
}

func custodyEventFromModel(model CustodyEventModel) domain.CustodyEvent {
	return domain.CustodyEvent{
		Seq:            model.Seq,
		Timestamp:      model.OccurredAt.UTC(),
		Kind:           domain.CustodyEventKind(model.Kind),
		Actor:          model.Actor,
		EvidenceHash:   model.EvidenceHash,
		BlockReference: stringValue(model.BlockReference),
	}
}

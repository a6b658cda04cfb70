package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"truthcert/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Issue inserts the record and its issuance custody events in one transaction.
func (r *CertificateRepository) Issue(ctx context.Context, cert domain.StoredCertificate, events []domain.CustodyEvent) ([]domain.CustodyEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	model, err := certificateModelFromDomain(cert)
	if err != nil {
		return nil, err
	}
	model.CreatedAt = time.Now().UTC()

	var out []domain.CustodyEvent
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, model.CertificateID)
			}
			return err
		}
		committed, err := appendCustody(ctx, tx, model.CertificateID, events)
		if err != nil {
			return err
		}
		out = committed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CertificateRepository) Get(ctx context.Context, certificateID string) (domain.StoredCertificate, error) {
	if r.db == nil {
		return domain.StoredCertificate{}, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).
		Where("certificate_id = ?", certificateID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StoredCertificate{}, domain.ErrNotFound
		}
		return domain.StoredCertificate{}, err
	}
	return certificateFromModel(model)
}

// Snapshot reads the certificate and its custody history in one read-only
// REPEATABLE READ transaction, so a revoke committing in between is either
// fully visible or not at all.
func (r *CertificateRepository) Snapshot(ctx context.Context, certificateID string) (domain.StoredCertificate, []domain.CustodyEvent, error) {
	if r.db == nil {
		return domain.StoredCertificate{}, nil, errDBUnavailable
	}
	var (
		cert    domain.StoredCertificate
		history []domain.CustodyEvent
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model CertificateModel
		err := tx.Where("certificate_id = ?", certificateID).Take(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if cert, err = certificateFromModel(model); err != nil {
			return err
		}
		history, err = custodyHistory(ctx, tx, certificateID)
		return err
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.StoredCertificate{}, nil, err
	}
	return cert, history, nil
}

// Revoke flags the certificate and appends its revocation event atomically.
func (r *CertificateRepository) Revoke(ctx context.Context, certificateID string, rev domain.Revocation, event domain.CustodyEvent) (domain.CustodyEvent, error) {
	if r.db == nil {
		return domain.CustodyEvent{}, errDBUnavailable
	}
	var out domain.CustodyEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model CertificateModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("certificate_id = ?", certificateID).
			Take(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if model.RevokedAt != nil {
			return domain.ErrAlreadyRevoked
		}
		committed, err := appendCustody(ctx, tx, certificateID, []domain.CustodyEvent{event})
		if err != nil {
			return err
		}
		revokedAt := domain.NormalizeTime(rev.RevokedAt)
		if err := tx.Model(&CertificateModel{}).
			Where("certificate_id = ?", certificateID).
			Updates(map[string]any{
				"revoked_at":        revokedAt,
				"revoked_by":        stringPtrIfNotEmpty(rev.RevokedBy),
				"revocation_reason": stringPtrIfNotEmpty(rev.Reason),
			}).Error; err != nil {
			return err
		}
		out = committed[0]
		return nil
	})
	if err != nil {
		return domain.CustodyEvent{}, err
	}
	return out, nil
}

type statsModel struct {
	EvidenceLevel string
	Jurisdictions []byte
	IssuedAt      time.Time
	ValidUntil    time.Time
	RevokedAt     *time.Time
}

func (r *CertificateRepository) StatsRows(ctx context.Context) ([]domain.StatsRow, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []statsModel
	if err := r.db.WithContext(ctx).
		Model(&CertificateModel{}).
		Select("evidence_level, jurisdictions, issued_at, valid_until, revoked_at").
		Find(&models).Error; err != nil {
		return nil, err
	}
	rows := make([]domain.StatsRow, 0, len(models))
	for _, m := range models {
		var jurisdictions []string
		if err := json.Unmarshal(m.Jurisdictions, &jurisdictions); err != nil {
			return nil, fmt.Errorf("decode jurisdictions: %w", err)
		}
		rows = append(rows, domain.StatsRow{
			EvidenceLevel: domain.EvidenceLevel(m.EvidenceLevel),
			Jurisdictions: jurisdictions,
			IssuedAt:      m.IssuedAt.UTC(),
			ValidUntil:    m.ValidUntil.UTC(),
			Revoked:       m.RevokedAt != nil,
		})
	}
	return rows, nil
}

func certificateModelFromDomain(cert domain.StoredCertificate) (CertificateModel, error) {
	rec := cert.Record
	if rec.CertificateID == "" {
		return CertificateModel{}, fmt.Errorf("%w: certificate id is required", domain.ErrValidation)
	}
	jurisdictions := rec.Jurisdictions
	if jurisdictions == nil {
		jurisdictions = []string{}
	}
	encoded, err := json.Marshal(jurisdictions)
	if err != nil {
		return CertificateModel{}, err
	}
	return CertificateModel{
		CertificateID:    rec.CertificateID,
		NotarizationID:   rec.NotarizationID,
		CapsuleID:        rec.CapsuleID,
		ContentHash:      rec.ContentHash,
		ExternalTxRef:    rec.ExternalTxRef,
		IssuedBy:         rec.IssuedBy,
		IssuedAt:         rec.IssuedAt.UTC(),
		ValidUntil:       rec.ValidUntil.UTC(),
		WitnessCount:     rec.WitnessCount,
		EvidenceLevel:    string(rec.EvidenceLevel),
		Jurisdictions:    encoded,
		LegalWeight:      string(rec.LegalWeight),
		PublicKeyID:      rec.PublicKeyID,
		DigitalSignature: rec.DigitalSignature,
		RequestedBy:      cert.Issuance.RequestedBy,
		Purpose:          stringPtrIfNotEmpty(cert.Issuance.Purpose),
	}, nil
}

func certificateFromModel(model CertificateModel) (domain.StoredCertificate, error) {
	var jurisdictions []string
	if err := json.Unmarshal(model.Jurisdictions, &jurisdictions); err != nil {
		return domain.StoredCertificate{}, fmt.Errorf("decode jurisdictions: %w", err)
	}
	out := domain.StoredCertificate{
		Record: domain.CertificateRecord{
			CertificateID:    model.CertificateID,
			NotarizationID:   model.NotarizationID,
			CapsuleID:        model.CapsuleID,
			ContentHash:      model.ContentHash,
			ExternalTxRef:    model.ExternalTxRef,
			IssuedBy:         model.IssuedBy,
			IssuedAt:         model.IssuedAt.UTC(),
			ValidUntil:       model.ValidUntil.UTC(),
			WitnessCount:     model.WitnessCount,
			EvidenceLevel:    domain.EvidenceLevel(model.EvidenceLevel),
			Jurisdictions:    jurisdictions,
			LegalWeight:      domain.LegalWeight(model.LegalWeight),
			PublicKeyID:      model.PublicKeyID,
			DigitalSignature: model.DigitalSignature,
		},
		Issuance: domain.Issuance{
			RequestedBy: model.RequestedBy,
			Purpose:     stringValue(model.Purpose),
		},
	}
	if model.RevokedAt != nil {
		out.Revocation = &domain.Revocation{
			RevokedAt: model.RevokedAt.UTC(),
			RevokedBy: stringValue(model.RevokedBy),
			Reason:    stringValue(model.RevocationReason),
		}
	}
	return out, nil
}

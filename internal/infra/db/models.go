package db

import "time"

type CertificateModel struct {
	CertificateID    string    `gorm:"column:certificate_id;primaryKey"`
	NotarizationID   string    `gorm:"index;not null"`
	CapsuleID        string    `gorm:"not null"`
	ContentHash      string    `gorm:"not null"`
	ExternalTxRef    string    `gorm:"not null"`
	IssuedBy         string    `gorm:"not null"`
	IssuedAt         time.Time `gorm:"index;not null"`
	ValidUntil       time.Time `gorm:"not null"`
	WitnessCount     int       `gorm:"not null"`
	EvidenceLevel    string    `gorm:"not null"`
	Jurisdictions    []byte    `gorm:"type:jsonb;not null"`
	LegalWeight      string    `gorm:"not null"`
	PublicKeyID      string    `gorm:"not null"`
	DigitalSignature string    `gorm:"not null"`
	RequestedBy      string    `gorm:"not null"`
	Purpose          *string
	RevokedAt        *time.Time
	RevokedBy        *string
	RevocationReason *string
	CreatedAt        time.Time `gorm:"not null"`
}

func (CertificateModel) TableName() string {
	return "certificates"
}

type CustodyEventModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	CertificateID  string    `gorm:"index;not null"`
	Seq            int64     `gorm:"not null"`
	OccurredAt     time.Time `gorm:"not null"`
	Kind           string    `gorm:"not null"`
	Actor          string    `gorm:"not null"`
	EvidenceHash   string    `gorm:"not null"`
	BlockReference *string
	CreatedAt      time.Time `gorm:"not null"`
}

func (CustodyEventModel) TableName() string {
	return "custody_events"
}

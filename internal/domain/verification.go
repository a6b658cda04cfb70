package domain

import "time"

type VerificationStatus string

const (
	StatusValid              VerificationStatus = "VALID"
	StatusNotFound           VerificationStatus = "NOT_FOUND"
	StatusTampered           VerificationStatus = "TAMPERED"
	StatusRevoked            VerificationStatus = "REVOKED"
	StatusExpired            VerificationStatus = "EXPIRED"
	StatusUnauthorizedIssuer VerificationStatus = "UNAUTHORIZED_ISSUER"
	StatusUnconfirmed        VerificationStatus = "UNCONFIRMED"
	StatusCustodyBroken      VerificationStatus = "CUSTODY_BROKEN"
)

const (
	LegalStatusValid   = "Valid - Legally Binding"
	LegalStatusInvalid = "Invalid - Do Not Use"
)

type VerificationChecklist struct {
	SignatureValid          bool `json:"signatureValid"`
	ExternalRecordConfirmed bool `json:"externalRecordConfirmed"`
	NotExpired              bool `json:"notExpired"`
	IssuerAuthorized        bool `json:"issuerAuthorized"`
	CustodyIntact           bool `json:"custodyIntact"`
	NotRevoked              bool `json:"notRevoked"`
}

func (c VerificationChecklist) All() bool {
	return c.SignatureValid &&
		c.ExternalRecordConfirmed &&
		c.NotExpired &&
		c.IssuerAuthorized &&
		c.CustodyIntact &&
		c.NotRevoked
}

type VerificationReport struct {
	CertificateID string                `json:"certificateId"`
	IsValid       bool                  `json:"isValid"`
	Status        VerificationStatus    `json:"status"`
	Checklist     VerificationChecklist `json:"checklist"`
	TrustScore    int                   `json:"trustScore"`
	LegalStatus   string                `json:"legalStatus"`
	EvidenceLevel EvidenceLevel         `json:"evidenceLevel,omitempty"`
	LegalWeight   LegalWeight           `json:"legalWeight,omitempty"`
	VerifiedAt    time.Time             `json:"verifiedAt"`
}

// IssuerPolicyInput is evaluated by the issuer authorization policy.
type IssuerPolicyInput struct {
	PublicKeyID   string   `json:"public_key_id"`
	KeyStatus     string   `json:"key_status"`
	AllowedKeyIDs []string `json:"allowed_key_ids"`
	IssuedBy      string   `json:"issued_by"`
}

package domain

import (
	"strings"
	"time"
)

// TemplateVersion identifies the certificate document layout.
const TemplateVersion = "truth-certificate-v1"

type RenderOptions struct {
	RenderedAt          time.Time
	VerificationBaseURL string
	// Issuance supplies the Issued To and Purpose lines. Empty fields print
	// as not stated.
	Issuance Issuance
}

// EmbeddedCertificate is what can be read back out of a rendered document.
type EmbeddedCertificate struct {
	CertificateID    string `json:"certificateId"`
	DigitalSignature string `json:"digitalSignature"`
	PublicKeyID      string `json:"publicKeyId"`
	TemplateVersion  string `json:"templateVersion"`
}

// VerificationURL is the public page for a certificate.
func VerificationURL(base, certificateID string) string {
	return strings.TrimRight(base, "/") + "/certificates/" + certificateID + "/verify"
}

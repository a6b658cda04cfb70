package document

import (
	"fmt"
	"regexp"

	"truthcert/internal/domain"
)

var (
	signaturePattern   = regexp.MustCompile(`\(` + signatureLabel + `([0-9a-f]+)\)`)
	keyPattern         = regexp.MustCompile(`\(` + keyLabel + `([^()\\]+)\)`)
	certificatePattern = regexp.MustCompile(`\(` + certificateLabel + `(CERT_[0-9A-F]+_[0-9A-F]+)\)`)
	templatePattern    = regexp.MustCompile(`Template (truth-certificate-v[0-9]+)`)
)

// Extract reads the certificate id, signature and key id printed in the
// signature block of a rendered certificate.
func Extract(pdf []byte) (domain.EmbeddedCertificate, error) {
	var out domain.EmbeddedCertificate
	if m := certificatePattern.FindSubmatch(pdf); m != nil {
		out.CertificateID = string(m[1])
	}
	if m := signaturePattern.FindSubmatch(pdf); m != nil {
		out.DigitalSignature = string(m[1])
	}
	if m := keyPattern.FindSubmatch(pdf); m != nil {
		out.PublicKeyID = string(m[1])
	}
	if m := templatePattern.FindSubmatch(pdf); m != nil {
		out.TemplateVersion = string(m[1])
	}
	if out.CertificateID == "" || out.DigitalSignature == "" {
		return domain.EmbeddedCertificate{}, fmt.Errorf("%w: no certificate signature block found", domain.ErrValidation)
	}
	return out, nil
}

package document

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"truthcert/internal/domain"
)

const (
	pageWidth    = 210.0
	marginX      = 15.0
	contentWidth = pageWidth - 2*marginX
	labelWidth   = 45.0
	rowHeight    = 6.0
)

// Renderer produces the certificate PDF. Output depends only on its inputs:
// compression is off, catalog keys are sorted and document dates come from
// RenderOptions.RenderedAt.
type Renderer struct {
	Producer string
}

func NewRenderer() *Renderer {
	return &Renderer{Producer: "truthcert " + domain.TemplateVersion}
}

func (r *Renderer) Render(record domain.CertificateRecord, chain domain.ChainOfCustody, opts domain.RenderOptions) ([]byte, error) {
	if err := validate(record, chain, opts); err != nil {
		return nil, err
	}
	renderedAt := opts.RenderedAt.UTC().Truncate(time.Second)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(renderedAt)
	pdf.SetModificationDate(renderedAt)
	pdf.SetProducer(r.producer(), false)
	pdf.SetCreator(domain.TemplateVersion, false)
	pdf.SetTitle("Truth Certificate "+record.CertificateID, false)
	pdf.SetSubject("Content hash "+record.ContentHash, false)
	pdf.SetMargins(marginX, 15, marginX)
	pdf.SetAutoPageBreak(true, 20)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	verifyURL := domain.VerificationURL(opts.VerificationBaseURL, record.CertificateID)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 7)
		pdf.SetTextColor(100, 116, 139)
		pdf.CellFormat(contentWidth, 4, tr("Verify at "+verifyURL), "", 1, "C", false, 0, "")
		pdf.CellFormat(contentWidth, 4, fmt.Sprintf("Template %s - page %d", domain.TemplateVersion, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	writeHeader(pdf, tr, record)
	writeFields(pdf, tr, record, opts.Issuance)
	writeAttestation(pdf, tr, record)
	writeCustody(pdf, tr, chain)
	writeSignature(pdf, record)

	if pdf.Err() {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) producer() string {
	if r == nil || r.Producer == "" {
		return "truthcert"
	}
	return r.Producer
}

func writeHeader(pdf *fpdf.Fpdf, tr func(string) string, record domain.CertificateRecord) {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(124, 58, 237)
	pdf.CellFormat(contentWidth, 10, tr(record.IssuedBy), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 116, 139)
	pdf.CellFormat(contentWidth, 5, "Content Notarization & Chain of Custody", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(contentWidth, 9, "CERTIFICATE OF CONTENT AUTHENTICITY", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(124, 58, 237)
	pdf.SetTextColor(255, 255, 255)
	badge := strings.ToUpper(string(record.LegalWeight))
	pdf.SetX(marginX + (contentWidth-60)/2)
	pdf.CellFormat(60, 7, badge, "", 1, "C", true, 0, "")
	pdf.Ln(5)
}

func writeFields(pdf *fpdf.Fpdf, tr func(string) string, record domain.CertificateRecord, issuance domain.Issuance) {
	rows := [][2]string{
		{"Certificate ID", record.CertificateID},
		{"Notarization ID", record.NotarizationID},
		{"Capsule ID", record.CapsuleID},
		{"Issued To", orNotStated(issuance.RequestedBy)},
		{"Content Hash", record.ContentHash},
		{"External Record", record.ExternalTxRef},
		{"Issued By", record.IssuedBy},
		{"Issued At", formatTime(record.IssuedAt)},
		{"Purpose", orNotStated(issuance.Purpose)},
		{"Valid Until", formatTime(record.ValidUntil)},
		{"Witnesses", strconv.Itoa(record.WitnessCount)},
		{"Evidence Level", string(record.EvidenceLevel)},
		{"Jurisdictions", strings.Join(domain.NormalizeJurisdictions(record.Jurisdictions), ", ")},
		{"Legal Weight", string(record.LegalWeight)},
	}
	pdf.SetDrawColor(226, 232, 240)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(100, 116, 139)
		pdf.CellFormat(labelWidth, rowHeight, row[0]+":", "B", 0, "L", false, 0, "")
		pdf.SetFont("Courier", "", 9)
		pdf.SetTextColor(30, 41, 59)
		pdf.CellFormat(contentWidth-labelWidth, rowHeight, tr(row[1]), "B", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

func writeAttestation(pdf *fpdf.Fpdf, tr func(string) string, record domain.CertificateRecord) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(124, 58, 237)
	pdf.CellFormat(contentWidth, 7, "Legal Attestation", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(30, 41, 59)
	pdf.MultiCell(contentWidth, 4.5, tr(attestation(record)), "", "J", false)
	pdf.Ln(4)
}

func attestation(record domain.CertificateRecord) string {
	var standing string
	switch record.LegalWeight {
	case domain.LegalWeightNotarized:
		standing = "This certificate is issued at notarized standing and is intended for submission in legal proceedings."
	case domain.LegalWeightCertified:
		standing = "This certificate is issued at certified standing based on forensic examination of the content."
	case domain.LegalWeightEvidence:
		standing = "This certificate is issued at evidence standing and may support the admissibility of the content."
	default:
		standing = "This certificate is informational and carries no legal standing on its own."
	}
	return fmt.Sprintf("%s attests that the content identified by the hash above was notarized under reference %s, "+
		"confirmed by %d witness(es) and recorded on an external ledger under %s. %s "+
		"Any change to the fields of this certificate invalidates its digital signature.",
		record.IssuedBy, record.NotarizationID, record.WitnessCount, record.ExternalTxRef, standing)
}

func writeCustody(pdf *fpdf.Fpdf, tr func(string) string, chain domain.ChainOfCustody) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(124, 58, 237)
	pdf.CellFormat(contentWidth, 7, "Chain of Custody", "", 1, "L", false, 0, "")

	widths := []float64{8, 40, 42, 32, 38, 20}
	headers := []string{"#", "Timestamp (UTC)", "Event", "Actor", "Evidence", "Block"}
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(241, 245, 249)
	pdf.SetTextColor(30, 41, 59)
	for i, h := range headers {
		pdf.CellFormat(widths[i], rowHeight, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Courier", "", 7)
	for _, ev := range chain {
		cells := []string{
			strconv.FormatInt(ev.Seq, 10),
			formatTime(ev.Timestamp),
			string(ev.Kind),
			abbreviate(ev.Actor, 20),
			abbreviate(ev.EvidenceHash, 18),
			abbreviate(ev.BlockReference, 9),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], rowHeight, tr(c), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(5)
}

func writeSignature(pdf *fpdf.Fpdf, record domain.CertificateRecord) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(124, 58, 237)
	pdf.CellFormat(contentWidth, 7, "Digital Signature (HMAC-SHA256)", "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(contentWidth, 5, signatureLabel+record.DigitalSignature, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 5, keyLabel+record.PublicKeyID, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 5, certificateLabel+record.CertificateID, "", 1, "L", false, 0, "")
}

const (
	signatureLabel   = "Signature: "
	keyLabel         = "Public Key ID: "
	certificateLabel = "Certificate: "
)

func validate(record domain.CertificateRecord, chain domain.ChainOfCustody, opts domain.RenderOptions) error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s is required", domain.ErrRender, name)
	}
	switch {
	case record.CertificateID == "":
		return missing("certificate id")
	case record.NotarizationID == "":
		return missing("notarization id")
	case record.CapsuleID == "":
		return missing("capsule id")
	case record.ContentHash == "":
		return missing("content hash")
	case record.ExternalTxRef == "":
		return missing("external record reference")
	case record.IssuedBy == "":
		return missing("issuer")
	case record.IssuedAt.IsZero() || record.ValidUntil.IsZero():
		return missing("validity window")
	case record.DigitalSignature == "":
		return missing("digital signature")
	case record.PublicKeyID == "":
		return missing("public key id")
	case !record.EvidenceLevel.Valid():
		return fmt.Errorf("%w: unknown evidence level %q", domain.ErrRender, record.EvidenceLevel)
	case !record.LegalWeight.Valid():
		return fmt.Errorf("%w: unknown legal weight %q", domain.ErrRender, record.LegalWeight)
	case len(chain) == 0:
		return missing("chain of custody")
	case opts.RenderedAt.IsZero():
		return missing("render time")
	}
	return nil
}

func orNotStated(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not stated"
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func abbreviate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"truthcert/internal/domain"
	"truthcert/internal/infra/document"
)

var certificateIDPattern = regexp.MustCompile(`^CERT_[0-9A-F]+_[0-9A-F]{16}$`)

func TestIssueCertificate(t *testing.T) {
	h := newHarness(t)
	out := h.mustIssue(t, "N1")
	record := out.Certificate.Record

	if !certificateIDPattern.MatchString(record.CertificateID) {
		t.Fatalf("certificate id %q has unexpected format", record.CertificateID)
	}
	if got := record.ValidUntil.Sub(record.IssuedAt); got != 365*24*time.Hour {
		t.Fatalf("validity window = %s", got)
	}
	if record.LegalWeight != domain.LegalWeightCertified {
		t.Fatalf("legal weight = %s", record.LegalWeight)
	}
	if fmt.Sprint(record.Jurisdictions) != "[EU US]" {
		t.Fatalf("jurisdictions = %v", record.Jurisdictions)
	}
	if record.IssuedBy != "Truth Authority" || record.PublicKeyID != "k1" {
		t.Fatalf("issuer = %s key = %s", record.IssuedBy, record.PublicKeyID)
	}
	if record.DigitalSignature == "" {
		t.Fatalf("expected signature")
	}
	if !bytes.HasPrefix(out.Document, []byte("%PDF")) {
		t.Fatalf("expected PDF document")
	}

	history, err := h.store.Ledger().History(context.Background(), record.CertificateID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(domain.IssuanceSequence) {
		t.Fatalf("expected %d custody events, got %d", len(domain.IssuanceSequence), len(history))
	}
	for i, kind := range domain.IssuanceSequence {
		if history[i].Kind != kind {
			t.Fatalf("event %d = %s, want %s", i, history[i].Kind, kind)
		}
		if history[i].Seq != int64(i+1) {
			t.Fatalf("event %d seq = %d", i, history[i].Seq)
		}
	}
	if history[0].Actor != "alice" {
		t.Fatalf("request actor = %s", history[0].Actor)
	}
	if history[1].EvidenceHash != testContentHash {
		t.Fatalf("content verification evidence = %s", history[1].EvidenceHash)
	}
	if history[2].EvidenceHash != testTxRef || history[2].BlockReference != "18000042" {
		t.Fatalf("external record event = %+v", history[2])
	}
	if history[3].EvidenceHash != record.DigitalSignature {
		t.Fatalf("generated event must carry the signature")
	}

	embedded, err := document.Extract(out.Document)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if embedded.CertificateID != record.CertificateID || embedded.DigitalSignature != record.DigitalSignature {
		t.Fatalf("embedded certificate = %+v", embedded)
	}
	for _, want := range []string{"(Issued To:)", "(alice)", "(Purpose:)", "(court filing)"} {
		if !bytes.Contains(out.Document, []byte(want)) {
			t.Fatalf("document is missing %s", want)
		}
	}

	if got := len(h.sink.events[record.CertificateID]); got != 4 {
		t.Fatalf("sink received %d events", got)
	}
	if h.metrics.issued[string(domain.EvidenceForensic)] != 1 {
		t.Fatalf("issued metric = %v", h.metrics.issued)
	}
}

func TestIssueValidationHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	cases := []IssueRequest{
		{CapsuleID: "C1"},
		{NotarizationID: "N1"},
		{NotarizationID: "  ", CapsuleID: "C1"},
	}
	for _, req := range cases {
		_, err := h.issue.Execute(context.Background(), req)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
	if calls := h.lookup.calls.Load(); calls != 0 {
		t.Fatalf("lookup called %d times", calls)
	}
	rows, _ := h.store.StatsRows(context.Background())
	if len(rows) != 0 {
		t.Fatalf("store should be empty")
	}
}

func TestIssueLookupErrors(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		id   string
		want error
	}{
		{"missing", domain.ErrNotFound},
		{"BAD_LEVEL", domain.ErrLookupFailure},
		{"UNCONFIRMED", domain.ErrLookupFailure},
	}
	for _, tc := range cases {
		_, err := h.issue.Execute(context.Background(), IssueRequest{NotarizationID: tc.id, CapsuleID: "C1"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.id, tc.want, err)
		}
	}
	rows, _ := h.store.StatsRows(context.Background())
	if len(rows) != 0 {
		t.Fatalf("failed issuance must not commit")
	}
}

func TestIssueLookupTimeout(t *testing.T) {
	h := newHarness(t)
	h.builder.Lookup = blockingLookup{}
	h.builder.LookupTimeout = 10 * time.Millisecond

	start := time.Now()
	_, err := h.issue.Execute(context.Background(), IssueRequest{NotarizationID: "N1", CapsuleID: "C1"})
	if !errors.Is(err, domain.ErrLookupTimeout) {
		t.Fatalf("expected lookup timeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout was not bounded")
	}
}

func TestIssueDefaultsRequester(t *testing.T) {
	h := newHarness(t)
	out, err := h.issue.Execute(context.Background(), IssueRequest{NotarizationID: "N1", CapsuleID: "C1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if out.Certificate.Issuance.RequestedBy != DefaultRequestedBy {
		t.Fatalf("requested by = %q", out.Certificate.Issuance.RequestedBy)
	}
}

func TestIssueRenderFailureKeepsCommittedCertificate(t *testing.T) {
	h := newHarness(t)
	h.issue.Renderer = failingRenderer{}

	out, err := h.issue.Execute(context.Background(), IssueRequest{NotarizationID: "N1", CapsuleID: "C1", RequestedBy: "alice"})
	if !errors.Is(err, domain.ErrRender) {
		t.Fatalf("expected render error, got %v", err)
	}
	id := out.Certificate.Record.CertificateID
	if id == "" {
		t.Fatalf("committed certificate must be returned with the render error")
	}
	if _, err := h.store.Get(context.Background(), id); err != nil {
		t.Fatalf("certificate should be committed: %v", err)
	}
	if h.metrics.renders != 1 {
		t.Fatalf("render failure metric = %d", h.metrics.renders)
	}

	report, err := h.verify.Execute(context.Background(), VerifyRequest{
		CertificateID:    id,
		DigitalSignature: out.Certificate.Record.DigitalSignature,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.IsValid {
		t.Fatalf("certificate should verify after render failure: %+v", report)
	}

	_, doc, err := h.document.Render(context.Background(), id)
	if err != nil {
		t.Fatalf("re-render: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Fatalf("expected PDF")
	}
}

func TestIssueSinkFailureIsBestEffort(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("broker down")
	out := h.mustIssue(t, "N1")
	if _, err := h.store.Get(context.Background(), out.Certificate.Record.CertificateID); err != nil {
		t.Fatalf("certificate should be committed: %v", err)
	}
}

func TestIssueConcurrentDistinctCertificates(t *testing.T) {
	h := newHarness(t)
	const n = 20
	var wg sync.WaitGroup
	ids := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := h.issue.Execute(context.Background(), IssueRequest{
				NotarizationID: "N2",
				CapsuleID:      fmt.Sprintf("C%d", i),
				RequestedBy:    "bob",
			})
			if err != nil {
				errs <- err
				return
			}
			ids <- out.Certificate.Record.CertificateID
		}(i)
	}
	wg.Wait()
	close(ids)
	close(errs)
	for err := range errs {
		t.Fatalf("issue: %v", err)
	}
	seen := make(map[string]struct{})
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate certificate id %s", id)
		}
		seen[id] = struct{}{}
		history, err := h.store.Ledger().History(context.Background(), id)
		if err != nil || len(history) != 4 {
			t.Fatalf("history for %s: %d events, err %v", id, len(history), err)
		}
	}
	if len(seen) != n {
		t.Fatalf("expected %d certificates, got %d", n, len(seen))
	}
}

func TestDocumentRenderIsDeterministic(t *testing.T) {
	h := newHarness(t)
	out := h.mustIssue(t, "N1")
	id := out.Certificate.Record.CertificateID

	_, first, err := h.document.Render(context.Background(), id)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	_, second, err := h.document.Render(context.Background(), id)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("re-rendering must be byte-identical")
	}
	if !bytes.Equal(first, out.Document) {
		t.Fatalf("re-render must match the issued document")
	}

	if _, _, err := h.document.Render(context.Background(), "CERT_0_0000000000000000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

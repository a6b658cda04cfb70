package usecase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"truthcert/internal/domain"
	"truthcert/internal/infra/crypto"
	"truthcert/internal/infra/custody"
	"truthcert/internal/infra/document"
	"truthcert/internal/infra/keys/soft"
	"truthcert/internal/infra/ledger"
	"truthcert/internal/infra/memstore"
	"truthcert/internal/infra/notary"
)

var (
	testContentHash = strings.Repeat("ab", 32)
	testTxRef       = "0x" + strings.Repeat("cd", 32)
	testStart       = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
)

type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type countingLookup struct {
	next  domain.NotarizationLookup
	calls atomic.Int32
}

func (l *countingLookup) Lookup(ctx context.Context, id string) (domain.NotarizationRecord, error) {
	l.calls.Add(1)
	return l.next.Lookup(ctx, id)
}

type blockingLookup struct{}

func (blockingLookup) Lookup(ctx context.Context, id string) (domain.NotarizationRecord, error) {
	<-ctx.Done()
	return domain.NotarizationRecord{}, ctx.Err()
}

type recordingSink struct {
	mu     sync.Mutex
	events map[string][]domain.CustodyEvent
	err    error
}

func (s *recordingSink) Publish(ctx context.Context, certificateID string, events []domain.CustodyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.events == nil {
		s.events = make(map[string][]domain.CustodyEvent)
	}
	s.events[certificateID] = append(s.events[certificateID], events...)
	return nil
}

type failingRenderer struct{}

func (failingRenderer) Render(domain.CertificateRecord, domain.ChainOfCustody, domain.RenderOptions) ([]byte, error) {
	return nil, domain.ErrRender
}

type countingMetrics struct {
	mu       sync.Mutex
	issued   map[string]int
	verified map[string]int
	revoked  int
	renders  int
}

func (m *countingMetrics) CertificateIssued(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issued == nil {
		m.issued = make(map[string]int)
	}
	m.issued[level]++
}

func (m *countingMetrics) CertificateVerified(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.verified == nil {
		m.verified = make(map[string]int)
	}
	m.verified[status]++
}

func (m *countingMetrics) CertificateRevoked() {
	m.mu.Lock()
	m.revoked++
	m.mu.Unlock()
}

func (m *countingMetrics) RenderFailed() {
	m.mu.Lock()
	m.renders++
	m.mu.Unlock()
}

type harness struct {
	clock    *stepClock
	lookup   *countingLookup
	keys     *soft.Keyring
	store    *memstore.Store
	sink     *recordingSink
	metrics  *countingMetrics
	builder  *CertificateBuilder
	issue    *IssueCertificate
	verify   *VerifyCertificate
	revoke   *RevokeCertificate
	preview  *PreviewCertificate
	stats    *CertificateStats
	document *CertificateDocument
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &stepClock{t: testStart, step: time.Millisecond}
	lookup := &countingLookup{next: notary.NewStatic(
		domain.NotarizationRecord{
			NotarizationID: "N1",
			ContentHash:    testContentHash,
			ExternalTxRef:  testTxRef,
			WitnessCount:   3,
			EvidenceLevel:  domain.EvidenceForensic,
			Jurisdictions:  []string{"US", "EU", "US"},
		},
		domain.NotarizationRecord{
			NotarizationID: "N2",
			ContentHash:    strings.Repeat("ef", 32),
			ExternalTxRef:  testTxRef,
			WitnessCount:   1,
			EvidenceLevel:  domain.EvidenceLegal,
			Jurisdictions:  []string{"UK"},
		},
		domain.NotarizationRecord{
			NotarizationID: "BAD_LEVEL",
			ContentHash:    testContentHash,
			ExternalTxRef:  testTxRef,
			EvidenceLevel:  "platinum",
		},
		domain.NotarizationRecord{
			NotarizationID: "UNCONFIRMED",
			ContentHash:    testContentHash,
			ExternalTxRef:  "0x" + strings.Repeat("00", 32),
			EvidenceLevel:  domain.EvidenceBasic,
		},
	)}
	keys, err := soft.NewKeyring([]domain.SigningKey{
		{ID: "k0", Issuer: "Truth Authority", Secret: []byte("retired-secret-0123456789"), Status: domain.KeyStatusRetired, CreatedAt: testStart.Add(-48 * time.Hour)},
		{ID: "k1", Issuer: "Truth Authority", Secret: []byte("active-secret-0123456789ab"), Status: domain.KeyStatusActive, CreatedAt: testStart.Add(-time.Hour)},
	})
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	store := memstore.New(custody.New())
	engine := crypto.NewEngine(keys)
	sink := &recordingSink{}
	metrics := &countingMetrics{}
	builder := &CertificateBuilder{
		Lookup:        lookup,
		Keys:          keys,
		IssuerName:    "fallback issuer",
		LookupTimeout: time.Second,
		Clock:         clock.Now,
	}
	renderer := document.NewRenderer()
	return &harness{
		clock:   clock,
		lookup:  lookup,
		keys:    keys,
		store:   store,
		sink:    sink,
		metrics: metrics,
		builder: builder,
		issue: &IssueCertificate{
			Builder:             builder,
			Confirmer:           ledger.NewStatic(map[string]string{testTxRef: "18000042"}),
			Signer:              engine,
			Store:               store,
			Sink:                sink,
			Renderer:            renderer,
			Metrics:             metrics,
			Clock:               clock.Now,
			LookupTimeout:       time.Second,
			VerificationBaseURL: "https://certs.example.test",
		},
		verify: &VerifyCertificate{
			Store:   store,
			Signer:  engine,
			Keys:    keys,
			Metrics: metrics,
			Clock:   clock.Now,
		},
		revoke:  &RevokeCertificate{Store: store, Sink: sink, Metrics: metrics, Clock: clock.Now},
		preview: &PreviewCertificate{Builder: builder, BaseURL: "https://certs.example.test/"},
		stats:   &CertificateStats{Store: store, Clock: clock.Now},
		document: &CertificateDocument{
			Store:               store,
			Renderer:            renderer,
			Metrics:             metrics,
			VerificationBaseURL: "https://certs.example.test",
		},
	}
}

func (h *harness) mustIssue(t *testing.T, notarizationID string) IssuedCertificate {
	t.Helper()
	out, err := h.issue.Execute(context.Background(), IssueRequest{
		NotarizationID: notarizationID,
		CapsuleID:      "C1",
		RequestedBy:    "alice",
		Purpose:        "court filing",
	})
	if err != nil {
		t.Fatalf("issue %s: %v", notarizationID, err)
	}
	return out
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"truthcert/internal/config"
	"truthcert/internal/domain"
	"truthcert/internal/infra/auth/apikey"
	"truthcert/internal/infra/crypto"
	"truthcert/internal/infra/custody"
	"truthcert/internal/infra/document"
	"truthcert/internal/infra/keys/soft"
	"truthcert/internal/infra/ledger"
	"truthcert/internal/infra/memstore"
	"truthcert/internal/infra/notary"
	"truthcert/internal/observability/metrics"
	"truthcert/internal/usecase"
)

const testAdminKey = "admin-secret"

var (
	testTxRef       = "0x" + strings.Repeat("12", 32)
	testContentHash = strings.Repeat("34", 32)
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server  *Server
	store   *memstore.Store
	builder *usecase.CertificateBuilder
	issue   *usecase.IssueCertificate
	metrics *metrics.Registry
}

type failingRenderer struct{}

func (failingRenderer) Render(domain.CertificateRecord, domain.ChainOfCustody, domain.RenderOptions) ([]byte, error) {
	return nil, domain.ErrRender
}

type blockingLookup struct{}

func (blockingLookup) Lookup(ctx context.Context, id string) (domain.NotarizationRecord, error) {
	<-ctx.Done()
	return domain.NotarizationRecord{}, ctx.Err()
}

type brokenStore struct {
	usecase.CertificateRepository
}

func (brokenStore) StatsRows(context.Context) ([]domain.StatsRow, error) {
	return nil, errors.New("dial tcp: password=hunter2 refused")
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	keys, err := soft.NewKeyring([]domain.SigningKey{{
		ID:     "k1",
		Issuer: "Truth Authority",
		Secret: []byte("http-test-secret-0123456789"),
		Status: domain.KeyStatusActive,
	}})
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	lookup := notary.NewStatic(
		domain.NotarizationRecord{
			NotarizationID: "N1",
			ContentHash:    testContentHash,
			ExternalTxRef:  testTxRef,
			WitnessCount:   2,
			EvidenceLevel:  domain.EvidenceLegal,
			Jurisdictions:  []string{"US"},
		},
		domain.NotarizationRecord{
			NotarizationID: "N_UNCONFIRMED",
			ContentHash:    testContentHash,
			ExternalTxRef:  "0x" + strings.Repeat("99", 32),
			EvidenceLevel:  domain.EvidenceBasic,
		},
	)
	store := memstore.New(custody.New())
	engine := crypto.NewEngine(keys)
	renderer := document.NewRenderer()
	reg, err := metrics.New()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	builder := &usecase.CertificateBuilder{Lookup: lookup, Keys: keys, LookupTimeout: time.Second}
	issue := &usecase.IssueCertificate{
		Builder:             builder,
		Confirmer:           ledger.NewStatic(map[string]string{testTxRef: "19000001"}),
		Signer:              engine,
		Store:               store,
		Renderer:            renderer,
		Metrics:             reg,
		LookupTimeout:       time.Second,
		VerificationBaseURL: "https://certs.example.test",
	}
	server := NewServer(cfg, ServerDeps{
		Issue:         issue,
		Verify:        &usecase.VerifyCertificate{Store: store, Signer: engine, Keys: keys, Metrics: reg},
		Revoke:        &usecase.RevokeCertificate{Store: store, Metrics: reg},
		Preview:       &usecase.PreviewCertificate{Builder: builder, BaseURL: "https://certs.example.test"},
		Stats:         &usecase.CertificateStats{Store: store},
		Document:      &usecase.CertificateDocument{Store: store, Renderer: renderer, Metrics: reg, VerificationBaseURL: "https://certs.example.test"},
		Authenticator: apikey.NewAuthenticator(testAdminKey),
		Metrics:       reg,
	})
	return &testEnv{server: server, store: store, builder: builder, issue: issue, metrics: reg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) issueCertificate(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, pathIssue, usecase.IssueRequest{NotarizationID: "N1", CapsuleID: "C1", RequestedBy: "alice"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("issue status = %d body = %s", rec.Code, rec.Body.String())
	}
	return rec.Header().Get("X-Certificate-Id")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestIssueReturnsPDF(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodPost, pathIssue, usecase.IssueRequest{NotarizationID: "N1", CapsuleID: "C1", RequestedBy: "alice"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %s", ct)
	}
	id := rec.Header().Get("X-Certificate-Id")
	if !strings.HasPrefix(id, "CERT_") {
		t.Fatalf("certificate id header = %q", id)
	}
	want := `attachment; filename="truth-certificate-` + id + `.pdf"`
	if got := rec.Header().Get("Content-Disposition"); got != want {
		t.Fatalf("content disposition = %s", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a PDF")
	}
	embedded, err := document.Extract(rec.Body.Bytes())
	if err != nil || embedded.CertificateID != id {
		t.Fatalf("extract: %+v %v", embedded, err)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestIssueErrors(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"invalid json", "{", http.StatusBadRequest, "INVALID_JSON"},
		{"missing capsule", usecase.IssueRequest{NotarizationID: "N1"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown notarization", usecase.IssueRequest{NotarizationID: "nope", CapsuleID: "C1"}, http.StatusNotFound, "NOT_FOUND"},
		{"unconfirmed", usecase.IssueRequest{NotarizationID: "N_UNCONFIRMED", CapsuleID: "C1"}, http.StatusBadGateway, "LOOKUP_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, pathIssue, tc.body, nil)
			if rec.Code != tc.status {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Code != tc.code || got.Error == "" {
				t.Fatalf("error body = %+v", got)
			}
		})
	}
}

func TestIssueLookupTimeout(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.builder.Lookup = blockingLookup{}
	env.builder.LookupTimeout = 10 * time.Millisecond
	rec := env.do(t, http.MethodPost, pathIssue, usecase.IssueRequest{NotarizationID: "N1", CapsuleID: "C1"}, nil)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestIssueRenderFailureReturnsAccepted(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.issue.Renderer = failingRenderer{}
	rec := env.do(t, http.MethodPost, pathIssue, usecase.IssueRequest{NotarizationID: "N1", CapsuleID: "C1"}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var out pendingDocumentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.CertificateID == "" || out.DocumentURL != "/v1/certificates/"+out.CertificateID+"/document" {
		t.Fatalf("unexpected body %+v", out)
	}

	doc := env.do(t, http.MethodGet, out.DocumentURL, nil, nil)
	if doc.Code != http.StatusOK || !bytes.HasPrefix(doc.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("re-render status = %d", doc.Code)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	id := env.issueCertificate(t)
	cert, err := env.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	sig := cert.Record.DigitalSignature

	rec := env.do(t, http.MethodPost, pathVerify, usecase.VerifyRequest{CertificateID: id, DigitalSignature: sig}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var ok verifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ok.Verification.IsValid || ok.Verification.TrustScore != 100 || ok.Message != messageVerified {
		t.Fatalf("unexpected body %+v", ok)
	}

	tampered := strings.Repeat("0", len(sig))
	rec = env.do(t, http.MethodPost, pathVerify, usecase.VerifyRequest{CertificateID: id, DigitalSignature: tampered}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var bad verifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &bad); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bad.Verification.Status != domain.StatusTampered || bad.Warning != warningTampered {
		t.Fatalf("unexpected body %+v", bad)
	}

	rec = env.do(t, http.MethodPost, pathVerify, usecase.VerifyRequest{CertificateID: "CERT_1_2", DigitalSignature: sig}, nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"NOT_FOUND"`) {
		t.Fatalf("unknown certificate: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPreviewAndStats(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodGet, "/v1/certificates/preview/N1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d body = %s", rec.Code, rec.Body.String())
	}
	var preview usecase.Preview
	if err := json.Unmarshal(rec.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasSuffix(preview.CertificateID, "_PREVIEW") || preview.Metadata.LegalWeight != domain.LegalWeightNotarized {
		t.Fatalf("unexpected preview %+v", preview)
	}
	if !strings.Contains(rec.Body.String(), `"securityFeatures":[`) || len(preview.SecurityFeatures) != len(usecase.PreviewSecurityFeatures) {
		t.Fatalf("preview is missing security features: %s", rec.Body.String())
	}

	env.issueCertificate(t)
	rec = env.do(t, http.MethodGet, "/v1/certificates/stats?window=7d", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d body = %s", rec.Code, rec.Body.String())
	}
	var stats domain.CertificateStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 1 || stats.IssuedInWindow != 1 || stats.ByEvidenceLevel[domain.EvidenceLegal] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	rec = env.do(t, http.MethodGet, "/v1/certificates/stats?window=forever", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad window status = %d", rec.Code)
	}
}

func TestDocumentAndCustody(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	id := env.issueCertificate(t)

	rec := env.do(t, http.MethodGet, "/v1/certificates/"+id+"/document", nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Certificate-Id") != id {
		t.Fatalf("document status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/certificates/"+id+"/custody", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("custody status = %d", rec.Code)
	}
	var out custodyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Events) != 4 || out.State != domain.StateIssued {
		t.Fatalf("unexpected custody %+v", out)
	}

	rec = env.do(t, http.MethodGet, "/v1/certificates/CERT_0_0/custody", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown custody status = %d", rec.Code)
	}
}

func TestRevokeRequiresAdminKey(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	id := env.issueCertificate(t)
	path := "/v1/certificates/" + id + "/revoke"
	body := map[string]string{"reason": "superseded"}

	if rec := env.do(t, http.MethodPost, path, body, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, path, body, map[string]string{adminKeyHeader: "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, path, body, map[string]string{adminKeyHeader: testAdminKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke status = %d body = %s", rec.Code, rec.Body.String())
	}
	var out revokeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Revocation.RevokedBy != apikey.AdminSubject || out.Event.Kind != domain.EventCertificateRevoked {
		t.Fatalf("unexpected revoke body %+v", out)
	}

	rec = env.do(t, http.MethodPost, path, body, map[string]string{adminKeyHeader: testAdminKey})
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != "ALREADY_REVOKED" {
		t.Fatalf("second revoke status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/v1/certificates/CERT_0_0/revoke", nil, map[string]string{adminKeyHeader: testAdminKey})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown revoke status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, config.Config{RateLimitRequests: 1, RateLimitWindowSeconds: 60})
	req := usecase.VerifyRequest{CertificateID: "CERT_1_2", DigitalSignature: "ab"}
	first := env.do(t, http.MethodPost, pathVerify, req, nil)
	if first.Code == http.StatusTooManyRequests {
		t.Fatalf("first request should not be limited")
	}
	if first.Header().Get("RateLimit-Limit") != "1" {
		t.Fatalf("missing rate limit headers")
	}
	second := env.do(t, http.MethodPost, pathVerify, req, nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", second.Code)
	}
	if decodeError(t, second).Code != "RATE_LIMITED" {
		t.Fatalf("unexpected body %s", second.Body.String())
	}
}

func TestInternalErrorsDoNotLeak(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.server.statsUC = &usecase.CertificateStats{Store: brokenStore{}}
	rec := env.do(t, http.MethodGet, "/v1/certificates/stats", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
	if decodeError(t, rec).Code != "INTERNAL" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHealthMetricsAndNoRoute(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"memory"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}

	env.issueCertificate(t)
	rec = env.do(t, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "truthcert_certificates_issued_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/unknown", nil, nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != "NOT_FOUND" {
		t.Fatalf("no route: %d %s", rec.Code, rec.Body.String())
	}
}

package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"truthcert/internal/domain"
	"truthcert/internal/observability/logger"
	"truthcert/internal/usecase"
)

const (
	pathIssue  = "/v1/certificates:issue"
	pathVerify = "/v1/certificates:verify"

	messageVerified = "Certificate is authentic and legally binding"
	warningTampered = "Certificate verification failed - document may be tampered"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type verifyResponse struct {
	Verification domain.VerificationReport `json:"verification"`
	Message      string                    `json:"message,omitempty"`
	Warning      string                    `json:"warning,omitempty"`
}

type pendingDocumentResponse struct {
	CertificateID string                   `json:"certificateId"`
	Status        string                   `json:"status"`
	DocumentURL   string                   `json:"documentUrl"`
	Certificate   domain.CertificateRecord `json:"certificate"`
	Error         string                   `json:"error"`
}

type custodyResponse struct {
	CertificateID string                  `json:"certificateId"`
	State         domain.CertificateState `json:"state"`
	Revocation    *domain.Revocation      `json:"revocation,omitempty"`
	Events        domain.ChainOfCustody   `json:"events"`
}

type revokeRequest struct {
	Reason    string `json:"reason"`
	RevokedBy string `json:"revokedBy"`
}

type revokeResponse struct {
	CertificateID string              `json:"certificateId"`
	Revocation    domain.Revocation   `json:"revocation"`
	Event         domain.CustodyEvent `json:"event"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mode": s.mode})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": s.mode})
}

func (s *Server) handleIssue(c *gin.Context) {
	if s.issueUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routeIssue, domain.Principal{}) {
		return
	}
	var req usecase.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	out, err := s.issueUC.Execute(c.Request.Context(), req)
	record := out.Certificate.Record
	if err != nil && !(errors.Is(err, domain.ErrRender) && record.CertificateID != "") {
		writeError(c, err)
		return
	}
	if err != nil || len(out.Document) == 0 {
		message := "document not rendered"
		if err != nil {
			message = "document rendering failed"
		}
		c.JSON(http.StatusAccepted, pendingDocumentResponse{
			CertificateID: record.CertificateID,
			Status:        string(domain.StateIssued),
			DocumentURL:   "/v1/certificates/" + record.CertificateID + "/document",
			Certificate:   record,
			Error:         message,
		})
		return
	}
	writePDF(c, record.CertificateID, out.Document)
}

func (s *Server) handleVerify(c *gin.Context) {
	if s.verifyUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routeVerify, domain.Principal{}) {
		return
	}
	var req usecase.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	report, err := s.verifyUC.Execute(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	if report.IsValid {
		c.JSON(http.StatusOK, verifyResponse{Verification: report, Message: messageVerified})
		return
	}
	c.JSON(http.StatusBadRequest, verifyResponse{Verification: report, Warning: warningTampered})
}

func (s *Server) handlePreview(c *gin.Context) {
	if s.previewUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routePreview, domain.Principal{}) {
		return
	}
	preview, err := s.previewUC.Execute(c.Request.Context(), c.Param("notarization_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (s *Server) handleStats(c *gin.Context) {
	if s.statsUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routeStats, domain.Principal{}) {
		return
	}
	window, err := usecase.ParseWindow(c.Query("window"))
	if err != nil {
		writeError(c, err)
		return
	}
	stats, err := s.statsUC.Execute(c.Request.Context(), window)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleDocument(c *gin.Context) {
	if s.documentUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routeDocument, domain.Principal{}) {
		return
	}
	cert, doc, err := s.documentUC.Render(c.Request.Context(), c.Param("certificate_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writePDF(c, cert.Record.CertificateID, doc)
}

func (s *Server) handleCustody(c *gin.Context) {
	if s.documentUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routeCustody, domain.Principal{}) {
		return
	}
	cert, chain, err := s.documentUC.Custody(c.Request.Context(), c.Param("certificate_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, custodyResponse{
		CertificateID: cert.Record.CertificateID,
		State:         cert.State(time.Now()),
		Revocation:    cert.Revocation,
		Events:        chain,
	})
}

func (s *Server) handleRevoke(c *gin.Context) {
	if s.revokeUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	principal, ok := s.requireAdmin(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeRevoke, principal) {
		return
	}
	var req revokeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
			return
		}
	}
	revokedBy := req.RevokedBy
	if revokedBy == "" {
		revokedBy = principal.Subject
	}
	id := c.Param("certificate_id")
	rev, event, err := s.revokeUC.Execute(c.Request.Context(), usecase.RevokeRequest{
		CertificateID: id,
		RevokedBy:     revokedBy,
		Reason:        req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, revokeResponse{CertificateID: id, Revocation: rev, Event: event})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		switch c.Request.URL.Path {
		case pathIssue:
			s.handleIssue(c)
			return
		case pathVerify:
			s.handleVerify(c)
			return
		}
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func writePDF(c *gin.Context, certificateID string, doc []byte) {
	c.Header("X-Certificate-Id", certificateID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "truth-certificate-"+certificateID+".pdf"))
	c.Data(http.StatusOK, "application/pdf", doc)
}

// writeError maps domain errors to HTTP. Server-side failures are logged and
// answered with a generic message.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrLookupTimeout):
		status, code = http.StatusGatewayTimeout, "LOOKUP_TIMEOUT"
	case errors.Is(err, domain.ErrLookupFailure):
		status, code = http.StatusBadGateway, "LOOKUP_FAILED"
	case errors.Is(err, domain.ErrAlreadyRevoked):
		status, code = http.StatusConflict, "ALREADY_REVOKED"
	case errors.Is(err, domain.ErrAlreadyExists):
		status, code = http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, domain.ErrOrdering):
		status, code = http.StatusConflict, "CUSTODY_ORDERING"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrKeyUnknown):
		code = "SIGNING_KEY_UNAVAILABLE"
	case errors.Is(err, domain.ErrRender):
		code = "RENDER_FAILED"
	}
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.From(c.Request.Context()).Error("request failed", zap.String("code", code), zap.Error(err))
		message = http.StatusText(status)
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Error: message,
		Code:  code,
	})
}

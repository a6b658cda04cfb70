package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"truthcert/internal/domain"
	"truthcert/internal/infra/auth/apikey"
)

const adminKeyHeader = "X-Admin-Key"

func (s *Server) requireAdmin(c *gin.Context) (domain.Principal, bool) {
	if s.authenticator == nil {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return domain.Principal{}, false
	}
	key := strings.TrimSpace(c.GetHeader(adminKeyHeader))
	if key == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return domain.Principal{}, false
	}
	principal, err := s.authenticator.Authenticate(c.Request.Context(), key)
	if err != nil {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return domain.Principal{}, false
	}
	if err := apikey.RequireRole(principal, domain.RoleAdmin); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "admin role required")
			return domain.Principal{}, false
		}
		writeError(c, err)
		return domain.Principal{}, false
	}
	return principal, true
}

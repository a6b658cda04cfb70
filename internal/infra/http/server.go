package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"truthcert/internal/config"
	"truthcert/internal/domain"
	"truthcert/internal/infra/ratelimit"
	"truthcert/internal/observability/logger"
	"truthcert/internal/observability/metrics"
	"truthcert/internal/usecase"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	issueUC    *usecase.IssueCertificate
	verifyUC   *usecase.VerifyCertificate
	revokeUC   *usecase.RevokeCertificate
	previewUC  *usecase.PreviewCertificate
	statsUC    *usecase.CertificateStats
	documentUC *usecase.CertificateDocument

	authenticator domain.Authenticator
	metrics       *metrics.Registry
	health        func(ctx context.Context) error
	mode          string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

type ServerDeps struct {
	Issue         *usecase.IssueCertificate
	Verify        *usecase.VerifyCertificate
	Revoke        *usecase.RevokeCertificate
	Preview       *usecase.PreviewCertificate
	Stats         *usecase.CertificateStats
	Document      *usecase.CertificateDocument
	Authenticator domain.Authenticator
	RateLimiter   domain.RateLimiter
	Metrics       *metrics.Registry
	// Health reports backing store reachability for /healthz.
	Health func(ctx context.Context) error
	// Mode is reported by /healthz, "db" or "memory".
	Mode string
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:           cfg,
		r:             r,
		issueUC:       deps.Issue,
		verifyUC:      deps.Verify,
		revokeUC:      deps.Revoke,
		previewUC:     deps.Preview,
		statsUC:       deps.Stats,
		documentUC:    deps.Document,
		authenticator: deps.Authenticator,
		metrics:       deps.Metrics,
		health:        deps.Health,
		mode:          deps.Mode,
	}
	if s.mode == "" {
		s.mode = "memory"
	}
	r.Use(requestLogger())
	if s.metrics != nil {
		r.Use(s.observeRequests())
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	s.rateLimiter = override
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		s.rateLimiter = ratelimit.NewMemory(ratelimit.MemoryConfig{MaxKeys: s.cfg.RateLimitMaxKeys})
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = time.Minute
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

// Routes with a colon verb suffix (":issue", ":verify") cannot be registered
// next to ":certificate_id" parameters and are dispatched from handleNoRoute.
func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.r.Group("/v1/certificates")
	{
		v1.GET("/preview/:notarization_id", s.handlePreview)
		v1.GET("/stats", s.handleStats)
		v1.GET("/:certificate_id/document", s.handleDocument)
		v1.GET("/:certificate_id/custody", s.handleCustody)
		v1.POST("/:certificate_id/revoke", s.handleRevoke)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

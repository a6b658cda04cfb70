package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "truthcert"

// Registry holds the service's collectors on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInflight prometheus.Gauge

	issued       *prometheus.CounterVec
	verified     *prometheus.CounterVec
	revoked      prometheus.Counter
	renderFailed prometheus.Counter
}

func New() (*Registry, error) {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Requests currently being served.",
		}),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Certificates issued by evidence level.",
		}, []string{"evidence_level"}),
		verified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_verified_total",
			Help:      "Verification outcomes by status.",
		}, []string{"status"}),
		revoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_revoked_total",
			Help:      "Certificates revoked.",
		}),
		renderFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_render_failures_total",
			Help:      "Certificate documents that failed to render after issuance.",
		}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests, r.httpDuration, r.httpInflight,
		r.issued, r.verified, r.revoked, r.renderFailed,
	} {
		if err := r.reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) CertificateIssued(level string) {
	r.issued.WithLabelValues(level).Inc()
}

func (r *Registry) CertificateVerified(status string) {
	r.verified.WithLabelValues(status).Inc()
}

func (r *Registry) CertificateRevoked() {
	r.revoked.Inc()
}

func (r *Registry) RenderFailed() {
	r.renderFailed.Inc()
}

// TrackRequest starts an in-flight request and returns the func that records it.
func (r *Registry) TrackRequest(method, route string) func(status int) {
	start := time.Now()
	r.httpInflight.Inc()
	return func(status int) {
		r.httpInflight.Dec()
		r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

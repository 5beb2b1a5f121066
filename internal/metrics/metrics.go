package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives billing pipeline events
type Recorder interface {
	// PipelineOutcome counts one finished proxy request by error code or "ok"
	PipelineOutcome(outcome string)
	ProviderLatency(provider string, d time.Duration)
	CreditsDebited(model string, credits int64)
	Reconciliation(reason string)
}

// NoopRecorder discards every event
type NoopRecorder struct{}

func (NoopRecorder) PipelineOutcome(string)                {}
func (NoopRecorder) ProviderLatency(string, time.Duration) {}
func (NoopRecorder) CreditsDebited(string, int64)          {}
func (NoopRecorder) Reconciliation(string)                 {}

// Prometheus records gateway metrics into its own registry
type Prometheus struct {
	registry *prometheus.Registry

	pipelineRequests    *prometheus.CounterVec
	providerLatency     *prometheus.HistogramVec
	creditsDebited      *prometheus.CounterVec
	reconciliationItems *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// NewPrometheus creates the collectors on a fresh registry
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,

		pipelineRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_pipeline_requests_total",
				Help: "Proxy requests by outcome",
			},
			[]string{"outcome"},
		),
		providerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_provider_latency_seconds",
				Help:    "Upstream provider call latency",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"provider"},
		),
		creditsDebited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_credits_debited_total",
				Help: "Credits debited from users by model",
			},
			[]string{"model"},
		),
		reconciliationItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_reconciliation_items_total",
				Help: "Usage records sent to the reconciliation queue by reason",
			},
			[]string{"reason"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by method, path, and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (p *Prometheus) PipelineOutcome(outcome string) {
	p.pipelineRequests.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) ProviderLatency(provider string, d time.Duration) {
	p.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func (p *Prometheus) CreditsDebited(model string, credits int64) {
	if credits > 0 {
		p.creditsDebited.WithLabelValues(model).Add(float64(credits))
	}
}

func (p *Prometheus) Reconciliation(reason string) {
	p.reconciliationItems.WithLabelValues(reason).Inc()
}

// HTTPRequest records one served request. path should be the route template.
func (p *Prometheus) HTTPRequest(method, path string, status int, d time.Duration) {
	s := strconv.Itoa(status)
	p.httpRequests.WithLabelValues(method, path, s).Inc()
	p.httpDuration.WithLabelValues(method, path, s).Observe(d.Seconds())
}

// Handler exposes the registry for scraping
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

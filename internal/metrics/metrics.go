package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// Recorder is the set of measurements the service emits
type Recorder interface {
	ObserveProviderCall(operation string, statusCode int, duration time.Duration)
	RecordTokenRefresh(result string)
	RecordTokenRevoked(reason string, count int)
	RecordAuthorization(success bool)
	SetActiveTokens(count int)
	RecordEnvelopeSent(deliveryMode string, success bool)
	RecordSigningView(source string, success bool)
	RecordWebhookEvent(status string)
	RecordEmailSent(success bool)
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

var _ Recorder = (*Metrics)(nil)

// Metrics holds the Prometheus collectors
type Metrics struct {
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	TokenRefreshTotal    *prometheus.CounterVec
	TokensRevokedTotal   *prometheus.CounterVec
	AuthorizationsTotal  *prometheus.CounterVec
	TokensActive         prometheus.Gauge
	EnvelopesSentTotal   *prometheus.CounterVec
	SigningViewsTotal    *prometheus.CounterVec
	WebhookEventsTotal   *prometheus.CounterVec
	EmailsSentTotal      *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns Prometheus metrics when enabled and a no-op recorder otherwise.
// Collectors register with the default registry once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}
	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		ProviderCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docusign_api_calls_total",
				Help: "DocuSign API calls by operation and HTTP status",
			},
			[]string{"operation", "status"}, // status 0 means no response
		),
		ProviderCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docusign_api_call_duration_seconds",
				Help:    "DocuSign API latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		TokenRefreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docusign_token_refresh_total",
				Help: "Access token refresh attempts",
			},
			[]string{"result"}, // success, rejected, transport, adopted
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docusign_tokens_revoked_total",
				Help: "Token records deactivated",
			},
			[]string{"reason"},
		),
		AuthorizationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docusign_authorizations_total",
				Help: "Interactive OAuth grants completed",
			},
			[]string{"result"},
		),
		TokensActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docusign_tokens_active",
				Help: "Active token records",
			},
		),
		EnvelopesSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esign_envelopes_sent_total",
				Help: "Envelopes submitted for signature",
			},
			[]string{"delivery_mode", "result"},
		),
		SigningViewsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esign_signing_views_total",
				Help: "Recipient signing sessions issued",
			},
			[]string{"source", "result"}, // source: send, regenerate, link
		),
		WebhookEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esign_webhook_events_total",
				Help: "DocuSign Connect notifications received",
			},
			[]string{"status"},
		),
		EmailsSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esign_emails_sent_total",
				Help: "Branded signing emails sent",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests served",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func result(success bool) string {
	if success {
		return resultSuccess
	}
	return resultError
}

func (m *Metrics) ObserveProviderCall(operation string, statusCode int, duration time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	m.ProviderCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordTokenRefresh(result string) {
	m.TokenRefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordTokenRevoked(reason string, count int) {
	m.TokensRevokedTotal.WithLabelValues(reason).Add(float64(count))
}

func (m *Metrics) RecordAuthorization(success bool) {
	m.AuthorizationsTotal.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) SetActiveTokens(count int) {
	m.TokensActive.Set(float64(count))
}

func (m *Metrics) RecordEnvelopeSent(deliveryMode string, success bool) {
	m.EnvelopesSentTotal.WithLabelValues(deliveryMode, result(success)).Inc()
}

func (m *Metrics) RecordSigningView(source string, success bool) {
	m.SigningViewsTotal.WithLabelValues(source, result(success)).Inc()
}

func (m *Metrics) RecordWebhookEvent(status string) {
	m.WebhookEventsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordEmailSent(success bool) {
	m.EmailsSentTotal.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

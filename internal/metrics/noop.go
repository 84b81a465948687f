package metrics

import "time"

// NoopMetrics discards every measurement
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveProviderCall(operation string, statusCode int, duration time.Duration) {}
func (n *NoopMetrics) RecordTokenRefresh(result string)                                             {}
func (n *NoopMetrics) RecordTokenRevoked(reason string, count int)                                  {}
func (n *NoopMetrics) RecordAuthorization(success bool)                                             {}
func (n *NoopMetrics) SetActiveTokens(count int)                                                    {}
func (n *NoopMetrics) RecordEnvelopeSent(deliveryMode string, success bool)                         {}
func (n *NoopMetrics) RecordSigningView(source string, success bool)                                {}
func (n *NoopMetrics) RecordWebhookEvent(status string)                                             {}
func (n *NoopMetrics) RecordEmailSent(success bool)                                                 {}
func (n *NoopMetrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration)   {}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	AuthRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "identity", Name: "auth_requests_total", Help: "Authentication middleware outcomes per request."},
		[]string{"result"},
	)
	UsersProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "identity", Name: "users_provisioned_total", Help: "Local users created, by trigger (token or webhook)."},
		[]string{"trigger"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "identity", Name: "webhook_events_total", Help: "Webhook events processed by type and result."},
		[]string{"type", "result"},
	)
	WebhookSignatureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "identity", Name: "webhook_signature_failures_total", Help: "Webhook deliveries rejected for a bad or missing signature."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "identity", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "identity", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(AuthRequests)
	reg.MustRegister(UsersProvisioned)
	reg.MustRegister(WebhookEvents)
	reg.MustRegister(WebhookSignatureFailures)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}

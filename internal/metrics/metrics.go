// Package metrics defines the Prometheus instruments exported by the web
// server on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "todoweb"

// Metrics holds the server's counters and histograms. Create one per
// registry with New.
type Metrics struct {
	// RequestsTotal counts HTTP requests.
	// Labels: route (gin full path), method, status (HTTP code class, e.g. 2xx)
	RequestsTotal *prometheus.CounterVec

	// RequestDuration measures handler latency.
	// Labels: route, method
	RequestDuration *prometheus.HistogramVec

	// GuestsProvisioned counts auto-created guest accounts.
	GuestsProvisioned prometheus.Counter

	// AccountsRegistered counts registrations.
	// Labels: from (guest, account)
	AccountsRegistered *prometheus.CounterVec

	// LoginFailures counts rejected logins.
	// Labels: reason (not_registered, wrong_password, rate_limited)
	LoginFailures *prometheus.CounterVec

	// TasksCompleted counts tasks moved to the completed list.
	TasksCompleted prometheus.Counter

	// SessionsPruned counts idle sessions removed by the janitor.
	SessionsPruned prometheus.Counter
}

// New registers the instruments with reg. Passing prometheus.NewRegistry()
// keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status class.",
		}, []string{"route", "method", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		GuestsProvisioned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guests_provisioned_total",
			Help:      "Guest accounts created for visitors without a session.",
		}),
		AccountsRegistered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_registered_total",
			Help:      "Accounts registered, by the kind of session that registered them.",
		}, []string{"from"}),
		LoginFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Rejected login and registration attempts by reason.",
		}, []string{"reason"}),
		TasksCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Tasks moved to the completed list.",
		}),
		SessionsPruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_pruned_total",
			Help:      "Idle sessions removed by the janitor.",
		}),
	}
}

// StatusClass buckets an HTTP status code, e.g. 404 -> "4xx".
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}

// Package metrics exposes Prometheus collectors for the onboarding pipeline.
package metrics

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"resty.dev/v3"
)

var (
	requestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkin_remote_request_latency",
			Help:    "Histogram of image host and RPC node request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"component", "host", "status_code"},
	)

	uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_uploads_total",
		Help: "Image uploads by outcome (remote, embedded, failed).",
	}, []string{"outcome"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_submissions_total",
		Help: "Post submissions by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_logins_total",
		Help: "Login attempts by method and outcome.",
	}, []string{"method", "outcome"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "checkin_rpc_breaker_open",
		Help: "1 when the circuit breaker for an RPC node is open.",
	}, []string{"node"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkin_active_sessions",
		Help: "Web sessions currently held in memory.",
	})
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeEmbedded = "embedded"
)

// ResponseMiddleware records request latency for a resty client.
func ResponseMiddleware(component string) resty.ResponseMiddleware {
	return func(_ *resty.Client, response *resty.Response) error {
		reqURL, err := url.Parse(response.Request.URL)
		if err != nil {
			return err
		}

		requestLatency.WithLabelValues(
			component,
			reqURL.Host,
			fmt.Sprintf("%d", response.StatusCode()),
		).Observe(response.Duration().Seconds())

		return nil
	}
}

// Upload counts one finished upload.
func Upload(outcome string) {
	uploads.WithLabelValues(outcome).Inc()
}

// Submission counts one finished submission.
func Submission(strategy, outcome string) {
	submissions.WithLabelValues(strategy, outcome).Inc()
}

// Login counts one login attempt.
func Login(method, outcome string) {
	logins.WithLabelValues(method, outcome).Inc()
}

// BreakerOpen records the breaker state of an RPC node.
func BreakerOpen(node string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	breakerState.WithLabelValues(node).Set(v)
}

// SetActiveSessions records the size of the web session store.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics provides a Prometheus backed falcon.MetricsRecorder.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exports client measurements as Prometheus metrics.
type Recorder struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	tokenRefreshes *prometheus.CounterVec
	rateLimit      prometheus.Gauge
	rateRemaining  prometheus.Gauge
}

// NewRecorder creates a Recorder and registers its collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "falcon_client_requests_total",
			Help: "Number of Falcon API requests by endpoint, method and status code",
		}, []string{"endpoint", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "falcon_client_request_duration_seconds",
			Help:    "Latency of Falcon API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "falcon_client_token_refreshes_total",
			Help: "Number of OAuth2 token requests by result",
		}, []string{"result"}),
		rateLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "falcon_client_rate_limit",
			Help: "Request limit per minute reported by the API",
		}),
		rateRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "falcon_client_rate_limit_remaining",
			Help: "Requests remaining in the current window reported by the API",
		}),
	}

	for _, c := range []prometheus.Collector{r.requests, r.duration, r.tokenRefreshes, r.rateLimit, r.rateRemaining} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RequestDone records one completed HTTP exchange.
func (r *Recorder) RequestDone(endpoint, method string, status int, elapsed time.Duration) {
	r.requests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	r.duration.WithLabelValues(endpoint, method).Observe(elapsed.Seconds())
}

// TokenRefreshed records a token request.
func (r *Recorder) TokenRefreshed(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.tokenRefreshes.WithLabelValues(result).Inc()
}

// RateLimit records the last observed rate limit headers.
func (r *Recorder) RateLimit(limit, remaining int) {
	r.rateLimit.Set(float64(limit))
	r.rateRemaining.Set(float64(remaining))
}

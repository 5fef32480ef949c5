package authclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded by Metrics.
const (
	outcomeOK        = "ok"
	outcomeUpstream  = "upstream_error"
	outcomeTransport = "transport_error"
	outcomeAuth      = "auth_error"
)

// Metrics counts client traffic. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	reissues *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the client collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "morsel",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Logical requests by method and outcome.",
		}, []string{"method", "outcome"}),
		reissues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "morsel",
			Subsystem: "client",
			Name:      "reissues_total",
			Help:      "Access token reissue attempts by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "morsel",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Wall time of logical requests, reissue and retry included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.reissues, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) observeReissue(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.reissues.WithLabelValues(result).Inc()
}

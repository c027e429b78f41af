// Package telemetry exposes prometheus instrumentation for the HTTP surface
// and the upstream persona calls. Metrics are registered on the default
// registry and served by the /metrics promhttp handler.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flux_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flux_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	upstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flux_upstream_requests_total",
		Help: "Upstream chat-completion calls by persona and outcome.",
	}, []string{"agent", "outcome"})

	upstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flux_upstream_request_duration_seconds",
		Help:    "Upstream chat-completion latency.",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
	})
)

// ObserveUpstreamCall records one upstream persona call.
func ObserveUpstreamCall(agent string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamCalls.WithLabelValues(agent, outcome).Inc()
	upstreamDuration.Observe(d.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. The route label uses the
// mux path template when available so path parameters do not blow up
// metric cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(srw.status)).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

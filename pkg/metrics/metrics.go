// Package metrics exposes a /metrics + /healthz HTTP surface for a
// running SourceClient: Prometheus counters for issued, failed and shed
// requests by function id, and a latency histogram per backend Issue
// call.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loadgen_requests_issued_total",
		Help: "Requests successfully issued by a FunctionWorker, by function id.",
	}, []string{"bench"})

	requestsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loadgen_requests_failed_total",
		Help: "Requests that failed at the backend, by function id.",
	}, []string{"bench"})

	requestsShedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loadgen_requests_shed_total",
		Help: "IATs that were generated but never issued because the minute elapsed first, by function id.",
	}, []string{"bench"})

	issueLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loadgen_issue_latency_seconds",
		Help:    "Latency of a single backend.Issue call.",
		Buckets: prometheus.DefBuckets,
	}, []string{"bench"})
)

// RecordIssued increments the issued counter for bench.
func RecordIssued(bench string) { requestsIssuedTotal.WithLabelValues(bench).Inc() }

// RecordFailed increments the failed counter for bench.
func RecordFailed(bench string) { requestsFailedTotal.WithLabelValues(bench).Inc() }

// RecordShed increments the shed counter for bench.
func RecordShed(bench string) { requestsShedTotal.WithLabelValues(bench).Inc() }

// Timer starts an issue-latency observation for bench; call the
// returned func once the Issue call returns.
func Timer(bench string) func() {
	t := prometheus.NewTimer(issueLatencySeconds.WithLabelValues(bench))
	return func() { t.ObserveDuration() }
}

// Server is the /metrics + /healthz HTTP surface.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a Server listening on addr (e.g. ":9090"). It does
// not start listening until ListenAndServe is called.
func NewServer(addr string) *Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	return &Server{httpServer: &http.Server{
		Addr:    addr,
		Handler: r,
	}}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ListenAndServe blocks serving /metrics and /healthz until the server
// is shut down or fails to bind.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server within timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}

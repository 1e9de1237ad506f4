// Package metrics exposes scrape counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbscope_fetch_total",
			Help: "Page fetches by outcome (ok, timeout, challenge, navigation)",
		},
		[]string{"outcome"},
	)
	ChallengeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbscope_challenge_total",
			Help: "Terminal bot challenge states reached",
		},
		[]string{"state"},
	)
	TargetTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbscope_target_total",
			Help: "Scrape targets by kind and status (ok, partial, failed)",
		},
		[]string{"kind", "status"},
	)
	TargetDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fbscope_target_duration_seconds",
			Help:    "Time spent on one scrape target including retries",
			Buckets: []float64{1, 5, 10, 20, 40, 80, 160},
		},
		[]string{"kind"},
	)
	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbscope_records_total",
			Help: "Normalized records by category and status (valid, invalid)",
		},
		[]string{"category", "status"},
	)
	LastRunSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fbscope_last_run_success",
			Help: "1 if the last batch finished without failed targets",
		},
	)
)

func init() {
	prometheus.MustRegister(FetchTotal, ChallengeTotal, TargetTotal, TargetDuration, RecordsTotal, LastRunSuccess)
}

// ObserveTarget records one target outcome.
func ObserveTarget(kind, status string, elapsed time.Duration) {
	TargetTotal.WithLabelValues(kind, status).Inc()
	TargetDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveRecord counts one normalized or rejected record.
func ObserveRecord(category string, valid bool) {
	status := "valid"
	if !valid {
		status = "invalid"
	}
	RecordsTotal.WithLabelValues(category, status).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

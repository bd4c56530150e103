// Package metrics defines the Prometheus collectors of the bills app.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "billed"

// Outcome label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeInvalid   = "invalid"
	OutcomeIgnored   = "ignored"
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeShared    = "shared"
)

var (
	BillSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bill_submissions_total",
		Help:      "New bill submissions by outcome.",
	}, []string{"outcome"})

	ReceiptUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipt_uploads_total",
		Help:      "Receipt attachments by outcome.",
	}, []string{"outcome"})

	BillListFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bill_list_fetches_total",
		Help:      "Bill list loads by outcome. Coalesced loads count as shared.",
	}, []string{"outcome"})

	BillSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bill_syncs_total",
		Help:      "Bills pushed to Google Sheets by the worker, by outcome.",
	}, []string{"outcome"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	SuspiciousRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "suspicious_requests_total",
		Help:      "Requests matching known probing patterns.",
	})

	ActiveForms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_bill_forms",
		Help:      "New bill form controllers currently held for sessions.",
	})
)

func all() []prometheus.Collector {
	return []prometheus.Collector{
		BillSubmissions, ReceiptUploads, BillListFetches, BillSyncs,
		HTTPRequests, HTTPDuration, RateLimited, SuspiciousRequests, ActiveForms,
	}
}

// Register adds the app collectors to reg. Collectors already registered
// with reg are skipped, so Register may be called more than once.
func Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range all() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRegistry returns a registry holding the app collectors plus the Go
// runtime and process collectors.
func NewRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Handler serves the exposition format for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

package verifier

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultSuccess      = "success"
	resultInvalidNonce = "invalid_nonce"
	resultMalformed    = "malformed"
	resultStoreError   = "store_error"
)

type metrics struct {
	registry      *prometheus.Registry
	noncesIssued  prometheus.Counter
	presentations *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		noncesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verifier_nonces_issued_total",
			Help: "Total number of nonces issued.",
		}),
		presentations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verifier_presentations_total",
			Help: "Total number of submitted presentations by outcome.",
		}, []string{"outcome"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verifier_store_errors_total",
			Help: "Total number of nonce store failures by operation.",
		}, []string{"op"}),
	}
	m.registry.MustRegister(
		m.noncesIssued,
		m.presentations,
		m.storeErrors,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *metrics) handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

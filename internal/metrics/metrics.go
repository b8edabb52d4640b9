// Package metrics records exchange outcomes in a Prometheus registry and can
// write them to a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the pqcoap metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	exchangesTotal   *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec

	connectAttempts *prometheus.CounterVec

	waitBudget   prometheus.Gauge
	payloadBytes prometheus.Gauge
	lastExchange prometheus.Gauge
	keyExchanges *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector creates a collector on its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	return NewCollectorWithRegistry(reg, reg)
}

// NewCollectorWithRegistry creates a collector on the supplied registerer.
// gatherer is used by WriteTextfile and may be nil.
func NewCollectorWithRegistry(registry prometheus.Registerer, gatherer prometheus.Gatherer) *Collector {
	return &Collector{
		exchangesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pqcoap_exchanges_total",
				Help: "Total number of CoAP exchanges by scheme and outcome",
			},
			[]string{"scheme", "outcome"},
		),
		exchangeDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pqcoap_exchange_duration_seconds",
				Help:    "Duration of CoAP exchanges in seconds, including connectivity",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 6, 10, 30},
			},
			[]string{"scheme", "outcome"},
		),
		connectAttempts: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pqcoap_connectivity_attempts_total",
				Help: "Network connect attempts by provider and result",
			},
			[]string{"provider", "result"},
		),
		waitBudget: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "pqcoap_wait_budget_seconds",
				Help: "Response wait budget of the last exchange",
			},
		),
		payloadBytes: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "pqcoap_response_payload_bytes",
				Help: "Payload size of the last response",
			},
		),
		lastExchange: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "pqcoap_last_exchange_timestamp_seconds",
				Help: "Unix time the last exchange finished",
			},
		),
		keyExchanges: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pqcoap_key_exchange_total",
				Help: "Secured sessions by applied key exchange group",
			},
			[]string{"group", "fallback"},
		),
		gatherer: gatherer,
	}
}

// RecordExchange records the outcome of one exchange.
func (c *Collector) RecordExchange(scheme, outcome string, duration time.Duration, payload int) {
	if c == nil {
		return
	}
	c.exchangesTotal.WithLabelValues(scheme, outcome).Inc()
	c.exchangeDuration.WithLabelValues(scheme, outcome).Observe(duration.Seconds())
	c.payloadBytes.Set(float64(payload))
	c.lastExchange.SetToCurrentTime()
}

// RecordConnectAttempts records the attempts of one connectivity phase. All
// attempts but the last failed; the last one failed unless connected.
func (c *Collector) RecordConnectAttempts(provider string, attempts int, connected bool) {
	if c == nil || attempts <= 0 {
		return
	}
	failed := attempts
	if connected {
		failed--
		c.connectAttempts.WithLabelValues(provider, "success").Inc()
	}
	if failed > 0 {
		c.connectAttempts.WithLabelValues(provider, "failure").Add(float64(failed))
	}
}

// RecordWaitBudget records the wait budget in use.
func (c *Collector) RecordWaitBudget(budget time.Duration) {
	if c == nil {
		return
	}
	c.waitBudget.Set(budget.Seconds())
}

// RecordKeyExchange records the group applied to a secured session.
func (c *Collector) RecordKeyExchange(group string, fellBack bool) {
	if c == nil {
		return
	}
	fallback := "false"
	if fellBack {
		fallback = "true"
	}
	c.keyExchanges.WithLabelValues(group, fallback).Inc()
}

// WriteTextfile writes the gathered metrics atomically to path in the text
// exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || c.gatherer == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.gatherer)
}

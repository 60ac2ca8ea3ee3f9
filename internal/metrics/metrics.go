// Package metrics exposes Prometheus collectors for redemptions, actuation
// and ingestion. All methods are safe on a nil *Metrics, which records
// nothing.
package metrics

import (
	"net/http"

	"ticket-kiosk/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kiosk"

// Ingestion batch results.
const (
	BatchIngested   = "ingested"
	BatchEmpty      = "empty"
	BatchReadError  = "read_error"
	BatchStoreError = "store_error"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	redemptions   *prometheus.CounterVec
	redeemErrors  prometheus.Counter
	pulses        *prometheus.CounterVec
	batches       *prometheus.CounterVec
	ingestedCodes prometheus.Counter
	removeErrors  prometheus.Counter
	journalErrors prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Submitted codes by input source and outcome",
		}, []string{"source", "outcome"}),
		redeemErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redeem_errors_total",
			Help:      "Redemptions aborted by a persistence fault",
		}),
		pulses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_pulses_total",
			Help:      "Actuator pulses by result",
		}, []string{"result"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_total",
			Help:      "Discovered ingestion batches by source and result",
		}, []string{"source", "result"}),
		ingestedCodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_codes_total",
			Help:      "Codes newly added to the valid list by ingestion",
		}),
		removeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_remove_errors_total",
			Help:      "Ingested batch files that could not be removed",
		}),
		journalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_errors_total",
			Help:      "Redemption events that could not be journaled",
		}),
	}

	reg.MustRegister(
		m.redemptions,
		m.redeemErrors,
		m.pulses,
		m.batches,
		m.ingestedCodes,
		m.removeErrors,
		m.journalErrors,
	)

	return m
}

// RegisterListSizes registers gauges that read the current list sizes from
// counts at scrape time.
func RegisterListSizes(reg prometheus.Registerer, counts func() (valid, used int)) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "valid_codes",
			Help:      "Codes currently redeemable",
		}, func() float64 {
			valid, _ := counts()
			return float64(valid)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "used_codes",
			Help:      "Codes already redeemed",
		}, func() float64 {
			_, used := counts()
			return float64(used)
		}),
	)
}

// InitRedemptions creates a zero series for every outcome of each source.
func (m *Metrics) InitRedemptions(sources ...string) {
	if m == nil {
		return
	}
	for _, src := range sources {
		for _, o := range model.Outcomes() {
			if o == model.OutcomeNone {
				continue
			}
			m.redemptions.WithLabelValues(src, o.String())
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveRedemption counts one handled code.
func (m *Metrics) ObserveRedemption(source string, outcome model.Outcome) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(source, outcome.String()).Inc()
}

// ObserveRedeemError counts a redemption aborted by an I/O fault.
func (m *Metrics) ObserveRedeemError() {
	if m == nil {
		return
	}
	m.redeemErrors.Inc()
}

// ObservePulse counts an actuator pulse and whether it failed.
func (m *Metrics) ObservePulse(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pulses.WithLabelValues(result).Inc()
}

// ObserveBatch counts a processed batch and the codes it added.
func (m *Metrics) ObserveBatch(source, result string, added int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(source, result).Inc()
	if added > 0 {
		m.ingestedCodes.Add(float64(added))
	}
}

// ObserveRemoveError counts a batch that was ingested but not removed.
func (m *Metrics) ObserveRemoveError() {
	if m == nil {
		return
	}
	m.removeErrors.Inc()
}

// ObserveJournalError counts a failed journal write.
func (m *Metrics) ObserveJournalError() {
	if m == nil {
		return
	}
	m.journalErrors.Inc()
}

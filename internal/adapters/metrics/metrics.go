package metrics

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

/*
Ballot counters are labelled by election so an operator can watch turnout
per election. Tally durations are labelled by mode only: IRV and STV have
very different costs and the election ID would explode the histogram.
*/

type TallyMetrics struct {
	registry *prometheus.Registry

	BallotsAccepted   *prometheus.CounterVec
	BallotsRejected   *prometheus.CounterVec
	TallyDuration     *prometheus.HistogramVec
	MismatchedBallots *prometheus.GaugeVec
	DriftedResults    *prometheus.GaugeVec
}

var _ ports.Metrics = (*TallyMetrics)(nil)

func NewTallyMetrics(namespace string) *TallyMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &TallyMetrics{
		registry: reg,
		BallotsAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ballots_accepted_total",
				Help:      "Total number of ballots stored",
			},
			[]string{"election_id"},
		),
		BallotsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ballots_rejected_total",
				Help:      "Total number of ballot submissions refused, by reason",
			},
			[]string{"election_id", "reason"},
		),
		TallyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tally_duration_seconds",
				Help:      "Histogram of tally computation times",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"mode"},
		),
		MismatchedBallots: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "receipt_mismatches",
				Help:      "Stored ballots whose receipt did not verify in the last audit",
			},
			[]string{"election_id"},
		),
		DriftedResults: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "result_cache_drift",
				Help:      "1 when the cached result disagreed with the recount in the last audit",
			},
			[]string{"election_id"},
		),
	}
}

func (m *TallyMetrics) BallotAccepted(electionID uuid.UUID) {
	m.BallotsAccepted.WithLabelValues(electionID.String()).Inc()
}

func (m *TallyMetrics) BallotRejected(electionID uuid.UUID, reason string) {
	m.BallotsRejected.WithLabelValues(electionID.String(), reason).Inc()
}

func (m *TallyMetrics) TallyComputed(mode domain.ElectionMode, elapsed time.Duration) {
	m.TallyDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

func (m *TallyMetrics) ReceiptMismatches(electionID uuid.UUID, count int) {
	m.MismatchedBallots.WithLabelValues(electionID.String()).Set(float64(count))
}

func (m *TallyMetrics) ResultDrift(electionID uuid.UUID, drifted bool) {
	var v float64
	if drifted {
		v = 1
	}
	m.DriftedResults.WithLabelValues(electionID.String()).Set(v)
}

// Handler exposes the registry in the Prometheus text format.
func (m *TallyMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is used by jobs that dump metrics instead of serving them.
func (m *TallyMetrics) Registry() *prometheus.Registry {
	return m.registry
}

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openballot/voting-core/config"
)

const (
	// Token issuance
	MetricTokensIssued     = "tokens_issued"
	MetricIssuanceRejected = "issuance_rejected"
	MetricIssueDuration    = "issue_duration"
	// Ballot casting
	MetricBallotsCast     = "ballots_cast"
	MetricBallotsRejected = "ballots_rejected"
	MetricLockContention  = "lock_contention"
	MetricCastDuration    = "cast_duration"
	// Tally
	MetricTallyDuration = "tally_duration"
	// Lifecycle / scheduler
	MetricOpenElections    = "open_elections"
	MetricScheduledApplied = "scheduled_transitions_applied"
	// Audit wiper
	MetricAuditWipedEntries = "audit_wiped_entries"
)

type MetricService struct {
	MetricsMap map[string]prometheus.Collector
	cfg        *config.Config
}

func NewMetricService(config *config.Config) *MetricService {
	ms := make(map[string]prometheus.Collector, 0)

	tokensIssuedMetric := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricTokensIssued,
		Help: "Voting tokens issued",
	})
	ms[MetricTokensIssued] = tokensIssuedMetric
	prometheus.MustRegister(tokensIssuedMetric)

	issuanceRejectedMetric := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricIssuanceRejected,
		Help: "Token issuance rejections by reason",
	}, []string{"reason"})
	ms[MetricIssuanceRejected] = issuanceRejectedMetric
	prometheus.MustRegister(issuanceRejectedMetric)

	issueDurationMetric := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: MetricIssueDuration,
		Help: "Duration of one token issuance",
	})
	ms[MetricIssueDuration] = issueDurationMetric
	prometheus.MustRegister(issueDurationMetric)

	ballotsCastMetric := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricBallotsCast,
		Help: "Ballots recorded",
	})
	ms[MetricBallotsCast] = ballotsCastMetric
	prometheus.MustRegister(ballotsCastMetric)

	ballotsRejectedMetric := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricBallotsRejected,
		Help: "Ballot rejections by reason",
	}, []string{"reason"})
	ms[MetricBallotsRejected] = ballotsRejectedMetric
	prometheus.MustRegister(ballotsRejectedMetric)

	lockContentionMetric := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricLockContention,
		Help: "Cast attempts bounced by token row lock contention",
	})
	ms[MetricLockContention] = lockContentionMetric
	prometheus.MustRegister(lockContentionMetric)

	castDurationMetric := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: MetricCastDuration,
		Help: "Duration of one accepted cast transaction",
	})
	ms[MetricCastDuration] = castDurationMetric
	prometheus.MustRegister(castDurationMetric)

	tallyDurationMetric := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: MetricTallyDuration,
		Help: "Duration of one results aggregation",
	})
	ms[MetricTallyDuration] = tallyDurationMetric
	prometheus.MustRegister(tallyDurationMetric)

	openElectionsMetric := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricOpenElections,
		Help: "Elections currently open for voting",
	})
	ms[MetricOpenElections] = openElectionsMetric
	prometheus.MustRegister(openElectionsMetric)

	scheduledAppliedMetric := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricScheduledApplied,
		Help: "Scheduled lifecycle transitions applied",
	})
	ms[MetricScheduledApplied] = scheduledAppliedMetric
	prometheus.MustRegister(scheduledAppliedMetric)

	auditWipedMetric := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricAuditWipedEntries,
		Help: "Audit log entries removed by retention",
	})
	ms[MetricAuditWipedEntries] = auditWipedMetric
	prometheus.MustRegister(auditWipedMetric)

	return &MetricService{
		MetricsMap: ms,
		cfg:        config,
	}
}

func (m *MetricService) Start() {
	http.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(fmt.Sprintf(":%d", m.cfg.MetricsConfig.Port), nil)
	if err != nil {
		panic(err)
	}
}

// Token issuance
func (m *MetricService) IncTokensIssued() {
	m.MetricsMap[MetricTokensIssued].(prometheus.Counter).Inc()
}

func (m *MetricService) IncIssuanceRejected(reason string) {
	m.MetricsMap[MetricIssuanceRejected].(*prometheus.CounterVec).WithLabelValues(reason).Inc()
}

func (m *MetricService) SetIssueDuration(duration time.Duration) {
	m.MetricsMap[MetricIssueDuration].(prometheus.Histogram).Observe(duration.Seconds())
}

// Ballot casting
func (m *MetricService) IncBallotsCast() {
	m.MetricsMap[MetricBallotsCast].(prometheus.Counter).Inc()
}

func (m *MetricService) IncBallotsRejected(reason string) {
	m.MetricsMap[MetricBallotsRejected].(*prometheus.CounterVec).WithLabelValues(reason).Inc()
}

func (m *MetricService) IncLockContention() {
	m.MetricsMap[MetricLockContention].(prometheus.Counter).Inc()
}

func (m *MetricService) SetCastDuration(duration time.Duration) {
	m.MetricsMap[MetricCastDuration].(prometheus.Histogram).Observe(duration.Seconds())
}

// Tally
func (m *MetricService) SetTallyDuration(duration time.Duration) {
	m.MetricsMap[MetricTallyDuration].(prometheus.Histogram).Observe(duration.Seconds())
}

// Lifecycle / scheduler
func (m *MetricService) SetOpenElections(count int64) {
	m.MetricsMap[MetricOpenElections].(prometheus.Gauge).Set(float64(count))
}

func (m *MetricService) IncScheduledApplied() {
	m.MetricsMap[MetricScheduledApplied].(prometheus.Counter).Inc()
}

// Audit wiper
func (m *MetricService) AddAuditWipedEntries(count int64) {
	m.MetricsMap[MetricAuditWipedEntries].(prometheus.Counter).Add(float64(count))
}

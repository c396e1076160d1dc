package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/teamlock"
	"gorm.io/gorm"
)

const (
	SnapshotModeTeam  = "team"
	SnapshotModeBatch = "batch"
)

const (
	SnapshotResultSuccess = "success"
	SnapshotResultFailure = "failure"
)

const (
	SnapshotReasonPlanNotFound         = "plan_not_found"
	SnapshotReasonLockTimeout          = "lock_timeout"
	SnapshotReasonDeadlineExceeded     = "deadline_exceeded"
	SnapshotReasonSerializationFailure = "serialization_failure"
	SnapshotReasonUniqueViolation      = "unique_violation"
	SnapshotReasonPanic                = "panic"
	SnapshotReasonUnknown              = "unknown"
)

// SnapshotMetrics tracks the health of plan snapshot jobs.
type SnapshotMetrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	teams     *prometheus.CounterVec
	errors    *prometheus.CounterVec
	lockWait  prometheus.Observer
	lastBatch prometheus.Gauge
}

var (
	snapshotMetricsOnce sync.Once
	snapshotMetrics     *SnapshotMetrics
)

// SnapshotWithConfig returns the process-wide snapshot metrics registered on
// the default Prometheus registry.
func SnapshotWithConfig(cfg Config) *SnapshotMetrics {
	snapshotMetricsOnce.Do(func() {
		snapshotMetrics = newSnapshotMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return snapshotMetrics
}

// NewSnapshotMetrics registers a fresh set of collectors on registerer.
func NewSnapshotMetrics(registerer prometheus.Registerer, cfg Config) *SnapshotMetrics {
	return newSnapshotMetrics(registerer, cfg)
}

func newSnapshotMetrics(registerer prometheus.Registerer, cfg Config) *SnapshotMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "entitlements"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &SnapshotMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "entitlements_snapshot_runs_total",
			Help:        "Snapshot job runs by mode and result.",
			ConstLabels: constLabels,
		}, []string{"mode", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "entitlements_snapshot_duration_seconds",
			Help:        "Snapshot job latency by mode.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
			ConstLabels: constLabels,
		}, []string{"mode"}),
		teams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "entitlements_snapshot_teams_total",
			Help:        "Teams processed by batch snapshot runs.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "entitlements_snapshot_errors_total",
			Help:        "Snapshot failures by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
	}
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "entitlements_snapshot_lock_wait_seconds",
		Help:        "Time spent waiting for the per-team snapshot lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		ConstLabels: constLabels,
	})
	lastBatch := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "entitlements_snapshot_last_batch_timestamp_seconds",
		Help:        "Unix time of the last completed batch snapshot.",
		ConstLabels: constLabels,
	})
	m.lockWait = lockWait
	m.lastBatch = lastBatch

	for _, c := range []prometheus.Collector{m.runs, m.duration, m.teams, m.errors, lockWait, lastBatch} {
		_ = registerer.Register(c)
	}
	return m
}

// ObserveRun records one snapshot run. err == nil counts as success.
func (m *SnapshotMetrics) ObserveRun(mode string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := SnapshotResultSuccess
	if err != nil {
		result = SnapshotResultFailure
		m.errors.WithLabelValues(ClassifySnapshotReason(err)).Inc()
	}
	m.runs.WithLabelValues(mode, result).Inc()
	m.duration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveBatch records the outcome counts of a SnapshotAllTeams run.
func (m *SnapshotMetrics) ObserveBatch(success, failure int, duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.teams.WithLabelValues(SnapshotResultSuccess).Add(float64(success))
	m.teams.WithLabelValues(SnapshotResultFailure).Add(float64(failure))
	result := SnapshotResultSuccess
	if failure > 0 {
		result = SnapshotResultFailure
	}
	m.runs.WithLabelValues(SnapshotModeBatch, result).Inc()
	m.duration.WithLabelValues(SnapshotModeBatch).Observe(duration.Seconds())
	m.lastBatch.Set(float64(finishedAt.Unix()))
}

func (m *SnapshotMetrics) IncPanic() {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(SnapshotReasonPanic).Inc()
}

func (m *SnapshotMetrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// ClassifySnapshotReason maps a snapshot failure to a bounded label value.
func ClassifySnapshotReason(err error) string {
	if err == nil {
		return SnapshotReasonUnknown
	}
	switch {
	case errors.Is(err, catalog.ErrPlanNotFound):
		return SnapshotReasonPlanNotFound
	case errors.Is(err, teamlock.ErrLockTimeout):
		return SnapshotReasonLockTimeout
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SnapshotReasonDeadlineExceeded
	case hasPGCode(err, "40001"):
		return SnapshotReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return SnapshotReasonUniqueViolation
	}
	return SnapshotReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

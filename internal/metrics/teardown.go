package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Teardown subsystem metrics
var (
	// SwapOffTotal counts swap devices disabled
	SwapOffTotal prometheus.Counter

	// EncryptionRemovedTotal counts encryption layers detached
	EncryptionRemovedTotal prometheus.Counter

	// MirrorsDestroyedTotal counts mirrors destroyed
	MirrorsDestroyedTotal prometheus.Counter

	// DryRunOperationsTotal counts operations skipped by dry-run, per action
	DryRunOperationsTotal *prometheus.CounterVec

	// OperationErrorsTotal counts failed teardown operations per action
	OperationErrorsTotal *prometheus.CounterVec

	// OperationDuration tracks how long each teardown command takes
	OperationDuration *prometheus.HistogramVec

	// RunDuration tracks the duration of complete removal runs
	RunDuration prometheus.Histogram

	// RunsTotal counts removal runs by outcome
	RunsTotal *prometheus.CounterVec

	// LastRunTimestamp records Unix timestamp of the last run
	LastRunTimestamp prometheus.Gauge
)

// initTeardownMetrics initializes all teardown subsystem metrics
func initTeardownMetrics() {
	SwapOffTotal = NewCounter(
		"swapsentry_swapoff_total",
		"Total number of swap devices disabled.",
	)

	EncryptionRemovedTotal = NewCounter(
		"swapsentry_encryption_removed_total",
		"Total number of encryption layers removed.",
	)

	MirrorsDestroyedTotal = NewCounter(
		"swapsentry_mirrors_destroyed_total",
		"Total number of mirrors destroyed.",
	)

	DryRunOperationsTotal = NewCounterVec(
		"swapsentry_dry_run_operations_total",
		"Total number of teardown operations skipped in dry-run mode.",
		[]string{"action"},
	)

	OperationErrorsTotal = NewCounterVec(
		"swapsentry_operation_errors_total",
		"Total number of failed teardown operations.",
		[]string{"action"},
	)

	OperationDuration = NewDurationHistogramVec(
		"swapsentry_operation_duration_seconds",
		"Duration of individual teardown operations in seconds.",
		[]string{"action"},
	)

	RunDuration = NewDurationHistogram(
		"swapsentry_run_duration_seconds",
		"Duration of removal runs in seconds.",
	)

	RunsTotal = NewCounterVec(
		"swapsentry_runs_total",
		"Total number of removal runs by status.",
		[]string{"status"},
	)

	LastRunTimestamp = NewGauge(
		"swapsentry_last_run_timestamp",
		"Timestamp of the last removal run (Unix epoch seconds).",
	)
}

// registerTeardownMetrics registers all teardown metrics with Prometheus
func registerTeardownMetrics() {
	prometheus.MustRegister(SwapOffTotal)
	prometheus.MustRegister(EncryptionRemovedTotal)
	prometheus.MustRegister(MirrorsDestroyedTotal)
	prometheus.MustRegister(DryRunOperationsTotal)
	prometheus.MustRegister(OperationErrorsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(LastRunTimestamp)
}

// RecordOperation accounts for one teardown operation
func RecordOperation(action string, durationSeconds float64, err error, dryRun bool) {
	Init()

	OperationDuration.WithLabelValues(action).Observe(durationSeconds)

	if err != nil {
		OperationErrorsTotal.WithLabelValues(action).Inc()
		return
	}
	if dryRun {
		DryRunOperationsTotal.WithLabelValues(action).Inc()
		return
	}

	switch action {
	case "SWAPOFF":
		SwapOffTotal.Inc()
	case "REMOVE_ENCRYPTION":
		EncryptionRemovedTotal.Inc()
	case "DESTROY_MIRROR":
		MirrorsDestroyedTotal.Inc()
	}
}

// RecordRun updates run duration, outcome and last run timestamp
func RecordRun(duration time.Duration, err error) {
	Init()

	status := "success"
	if err != nil {
		status = "failure"
	}
	RunDuration.Observe(duration.Seconds())
	RunsTotal.WithLabelValues(status).Inc()
	LastRunTimestamp.Set(float64(time.Now().Unix()))
}

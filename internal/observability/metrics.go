package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	ledgerImbalanceCounter *prometheus.CounterVec
	ledgerMutationCounter  *prometheus.CounterVec
	idempotencyCounter     *prometheus.CounterVec
	pendingQueueGauge      *prometheus.GaugeVec
	workflowCounter        *prometheus.CounterVec
	outboxCounter          *prometheus.CounterVec
	workerRunCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		ledgerImbalanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Accounts whose balance diverged from the sum of their ledger entries",
		}, []string{"scope"})

		ledgerMutationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_mutations_total",
			Help: "Balance changes applied through the ledger",
		}, []string{"kind", "direction"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		pendingQueueGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "workflow_pending_queue_size",
			Help: "Pending deposit claims or withdrawal requests seen by the last operator listing",
		}, []string{"workflow"})

		workflowCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Deposit, withdrawal and purchase state transitions",
		}, []string{"workflow", "action"})

		outboxCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Outbox relay outcomes",
		}, []string{"result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			ledgerImbalanceCounter,
			ledgerMutationCounter,
			idempotencyCounter,
			pendingQueueGauge,
			workflowCounter,
			outboxCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementLedgerImbalance(scope string) {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.WithLabelValues(scope).Inc()
}

func IncrementLedgerMutation(kind, direction string) {
	if ledgerMutationCounter == nil {
		return
	}
	ledgerMutationCounter.WithLabelValues(kind, direction).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func SetPendingQueueSize(workflow string, size int) {
	if pendingQueueGauge == nil {
		return
	}
	pendingQueueGauge.WithLabelValues(workflow).Set(float64(size))
}

func IncrementWorkflowTransition(workflow, action string) {
	if workflowCounter == nil {
		return
	}
	workflowCounter.WithLabelValues(workflow, action).Inc()
}

func IncrementOutboxEvent(result string) {
	if outboxCounter == nil {
		return
	}
	outboxCounter.WithLabelValues(result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

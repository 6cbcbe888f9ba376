package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopledger_events_appended_total",
		Help: "Total events appended to the store, labelled by aggregate type.",
	}, []string{"aggregate_type"})

	ConcurrencyConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coopledger_concurrency_conflicts_total",
		Help: "Total optimistic-concurrency conflicts on event append.",
	})

	EventsProjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopledger_events_projected_total",
		Help: "Total events applied by the projector, labelled by event type.",
	}, []string{"event_type"})

	ProjectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopledger_projection_errors_total",
		Help: "Total reducer failures, labelled by event type.",
	}, []string{"event_type"})

	ProjectorLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coopledger_projector_lag_events",
		Help: "Events between the head of the log and the projector checkpoint.",
	})

	ReactorExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopledger_reactor_executions_total",
		Help: "Reactor executions, labelled by handler and outcome.",
	}, []string{"handler", "status"})

	ReactorRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopledger_reactor_retries_total",
		Help: "Reactor retry attempts, labelled by handler.",
	}, []string{"handler"})

	SagaStepTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopledger_close_step_transitions_total",
		Help: "Period-close step transitions, labelled by step and outcome.",
	}, []string{"step", "outcome"})

	ApprovalWaitSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coopledger_close_approval_wait_seconds",
		Help: "Elapsed seconds a period close has been awaiting approval. Governance is human-paced; this feeds external alerting, not a timeout.",
	}, []string{"period_id"})

	LedgerPostings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopledger_ledger_postings_total",
		Help: "Ledger posting attempts, labelled by outcome.",
	}, []string{"outcome"})
)

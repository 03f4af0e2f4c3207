package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	payoutsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_payouts_released_total",
		Help: "Deals settled by the payout engine",
	})

	payoutMinorUnits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_payout_minor_units_total",
		Help: "Minor currency units distributed to investors",
	})

	idempotencyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_idempotency_outcomes_total",
		Help: "Idempotent executions by scope kind and outcome",
	}, []string{"scope", "outcome"})

	approvalEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_approval_events_total",
		Help: "Two-person approval requests by action and event",
	}, []string{"action", "event"})

	alertEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_alert_events_total",
		Help: "Alert scanner upserts by type and outcome",
	}, []string{"type", "outcome"})
)

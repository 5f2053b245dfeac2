package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Settlement batching metrics
	settlementRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_settlement_runs_total",
		Help: "Total settlement generation runs",
	}, []string{
		"status", // completed, skipped, failed
	})

	settlementsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_settlements_created_total",
		Help: "Total settlements created",
	})

	settlementPayoutCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_settlement_payout_cents_total",
		Help: "Total merchant payout in cents across created settlements",
	})

	settlementRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_settlement_run_duration_seconds",
		Help:    "Time to generate settlements for one payout date",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// Eligibility metrics
	eligibilityOrdersMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_eligibility_orders_marked_total",
		Help: "Total orders stamped with a settlement eligibility date",
	})

	// Commission metrics
	commissionFreezesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_commission_freezes_total",
		Help: "Total order lines with frozen commission",
	}, []string{
		"source", // product_rule, category_rule, tier_rule, merchant_rule, global_rule, merchant_default
	})

	// Refund metrics
	refundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_refunds_total",
		Help: "Total refund state transitions",
	}, []string{
		"stage", // created, approved, processed
		"type",  // full, partial
	})

	debitNotesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_debit_notes_issued_total",
		Help: "Total merchant debit notes issued",
	})

	debitNoteRecoveryCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_debit_note_recovery_cents_total",
		Help: "Total recovery amount in cents claimed through debit notes",
	})

	// Reconciliation metrics
	reconciliationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reconciliation_runs_total",
		Help: "Total reconciliation runs",
	}, []string{
		"result", // balanced, discrepancy
	})

	reconciliationDiscrepancy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_reconciliation_discrepancy",
		Help: "Discrepancy amount of the latest reconciliation run",
	})
)

// RecordSettlementRun records one settlement generation run
func RecordSettlementRun(status string, settlementsCreated int, payoutCents int64, duration float64) {
	settlementRunsTotal.WithLabelValues(status).Inc()
	settlementRunDuration.Observe(duration)

	if settlementsCreated > 0 {
		settlementsCreatedTotal.Add(float64(settlementsCreated))
		settlementPayoutCents.Add(float64(payoutCents))
	}
}

// RecordEligibilityRun records how many orders became eligible
func RecordEligibilityRun(updated int64) {
	eligibilityOrdersMarked.Add(float64(updated))
}

// RecordCommissionFreeze records a frozen commission by its source
func RecordCommissionFreeze(source string) {
	commissionFreezesTotal.WithLabelValues(source).Inc()
}

// RecordRefund records a refund state transition
func RecordRefund(stage, refundType string) {
	refundsTotal.WithLabelValues(stage, refundType).Inc()
}

// RecordDebitNote records an issued debit note
func RecordDebitNote(recoveryCents int64) {
	debitNotesIssued.Inc()
	debitNoteRecoveryCents.Add(float64(recoveryCents))
}

// RecordReconciliation records a reconciliation run and its discrepancy
func RecordReconciliation(discrepancy float64, hasDiscrepancy bool) {
	result := "balanced"
	if hasDiscrepancy {
		result = "discrepancy"
	}
	reconciliationRunsTotal.WithLabelValues(result).Inc()
	reconciliationDiscrepancy.Set(discrepancy)
}

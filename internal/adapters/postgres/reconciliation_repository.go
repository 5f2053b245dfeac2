package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
)

const reconciliationColumns = `id, period_start, period_end, gmv, commission_earned, commission_accrued, tax_collected,
	refund_count, refunds_total, commission_reversed, merchant_recovery, settlements_paid,
	debit_note_count, debit_notes_total, net_platform_revenue, expected_merchant_payables,
	discrepancy_amount, pending_settlement_total, unsettled_order_count, notes, created_at`

// ReconciliationRepository implements ports.ReconciliationRepository
type ReconciliationRepository struct {
	queryer
}

// NewReconciliationRepository creates a new reconciliation snapshot repository
func NewReconciliationRepository(db ports.DBPort) *ReconciliationRepository {
	return &ReconciliationRepository{queryer{pool: db.GetDB()}}
}

// Save inserts a snapshot. Snapshots are append-only.
func (r *ReconciliationRepository) Save(ctx context.Context, tx ports.DBTX, rec *models.Reconciliation) error {
	_, err := r.conn(tx).Exec(ctx, `
		INSERT INTO reconciliations (`+reconciliationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		rec.ID, rec.PeriodStart, rec.PeriodEnd, rec.GMV, rec.CommissionEarned, rec.CommissionAccrued, rec.TaxCollected,
		rec.Refunds.Count, rec.Refunds.TotalRefunded, rec.Refunds.CommissionReversed, rec.Refunds.MerchantRecovery,
		rec.SettlementsPaid, rec.DebitNotes.Count, rec.DebitNotes.Total,
		rec.NetPlatformRevenue, rec.ExpectedMerchantPayables, rec.DiscrepancyAmount,
		rec.PendingSettlements.Total, rec.PendingSettlements.OrderCount,
		nullText(rec.DiscrepancyNotes), rec.CreatedAt)
	if err != nil {
		return classify(err, "insert reconciliation")
	}
	return nil
}

// List returns the most recent snapshots first
func (r *ReconciliationRepository) List(ctx context.Context, db ports.DBTX, limit int32) ([]*models.Reconciliation, error) {
	rows, err := r.conn(db).Query(ctx, `
		SELECT `+reconciliationColumns+`
		FROM reconciliations
		ORDER BY created_at DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, classify(err, "list reconciliations")
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Reconciliation, error) {
		var (
			rec   models.Reconciliation
			notes pgtype.Text
		)
		err := row.Scan(&rec.ID, &rec.PeriodStart, &rec.PeriodEnd, &rec.GMV, &rec.CommissionEarned,
			&rec.CommissionAccrued, &rec.TaxCollected,
			&rec.Refunds.Count, &rec.Refunds.TotalRefunded, &rec.Refunds.CommissionReversed, &rec.Refunds.MerchantRecovery,
			&rec.SettlementsPaid, &rec.DebitNotes.Count, &rec.DebitNotes.Total,
			&rec.NetPlatformRevenue, &rec.ExpectedMerchantPayables, &rec.DiscrepancyAmount,
			&rec.PendingSettlements.Total, &rec.PendingSettlements.OrderCount,
			&notes, &rec.CreatedAt)
		rec.DiscrepancyNotes = notes.String
		return &rec, err
	})
	if err != nil {
		return nil, classify(err, "scan reconciliations")
	}
	return recs, nil
}

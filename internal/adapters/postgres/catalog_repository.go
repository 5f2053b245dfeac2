package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// CatalogRepository implements ports.CatalogRepository
type CatalogRepository struct {
	queryer
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db ports.DBPort) *CatalogRepository {
	return &CatalogRepository{queryer{pool: db.GetDB()}}
}

// GetProduct retrieves a product with its category ids
func (r *CatalogRepository) GetProduct(ctx context.Context, db ports.DBTX, id string) (*models.Product, error) {
	var p models.Product
	err := r.conn(db).QueryRow(ctx, `
		SELECT p.id, p.merchant_id, p.stock,
		       COALESCE(array_agg(pc.category_id ORDER BY pc.category_id)
		                FILTER (WHERE pc.category_id IS NOT NULL), '{}')
		FROM products p
		LEFT JOIN product_categories pc ON pc.product_id = p.id
		WHERE p.id = $1
		GROUP BY p.id`, id,
	).Scan(&p.ID, &p.MerchantID, &p.Stock, &p.CategoryIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product not found: %w", err)
	}
	if err != nil {
		return nil, classify(err, "get product")
	}
	return &p, nil
}

// RestoreStock adds quantity back to the product's stock
func (r *CatalogRepository) RestoreStock(ctx context.Context, tx ports.DBTX, productID string, quantity int) error {
	tag, err := r.conn(tx).Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, productID, quantity)
	if err != nil {
		return classify(err, "restore stock")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("restore stock: product %s not found", productID)
	}
	return nil
}

// MerchantRepository implements ports.MerchantRepository
type MerchantRepository struct {
	queryer
}

// NewMerchantRepository creates a new merchant repository
func NewMerchantRepository(db ports.DBPort) *MerchantRepository {
	return &MerchantRepository{queryer{pool: db.GetDB()}}
}

// GetMerchant retrieves a merchant by its ID
func (r *MerchantRepository) GetMerchant(ctx context.Context, db ports.DBTX, id string) (*models.Merchant, error) {
	var m models.Merchant
	err := r.conn(db).QueryRow(ctx,
		`SELECT id, name, default_commission_percent, is_active FROM merchants WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.DefaultCommissionPercent, &m.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("merchant not found: %w", err)
	}
	if err != nil {
		return nil, classify(err, "get merchant")
	}
	return &m, nil
}

// GetSalesVolume sums delivered order-line subtotals for the merchant
func (r *MerchantRepository) GetSalesVolume(ctx context.Context, db ports.DBTX, merchantID string) (decimal.Decimal, error) {
	var volume decimal.Decimal
	err := r.conn(db).QueryRow(ctx, `
		SELECT COALESCE(SUM(ol.subtotal), 0)
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE ol.merchant_id = $1 AND o.status = 'delivered'`, merchantID,
	).Scan(&volume)
	if err != nil {
		return decimal.Zero, classify(err, "get sales volume")
	}
	return volume, nil
}

package analytics

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AggregateRow is the slice of an inventory line the read-models need.
type AggregateRow struct {
	InventoryID       int64
	ProductID         int64
	BranchID          int64
	Quantity          int64
	CostPerUnit       float64
	LowStockThreshold int64
	MaxStockLevel     int64
}

// BatchRow is one active lot with an expiration date.
type BatchRow struct {
	BatchID        int64
	BatchNumber    string
	InventoryID    int64
	ProductID      int64
	BranchID       int64
	Quantity       int64
	CostPerUnit    float64
	ExpirationDate time.Time
}

// Repository reads ledger state for the read-models. It never writes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Aggregates returns the stock lines in scope.
func (r *Repository) Aggregates(ctx context.Context, f Filters) ([]AggregateRow, error) {
	query := `SELECT id, product_id, branch_id, quantity, cost_per_unit, low_stock_threshold, max_stock_level
		FROM inventory_aggregates WHERE 1=1`
	args := []any{}
	if f.BranchID != 0 {
		args = append(args, f.BranchID)
		query += ` AND branch_id = $` + strconv.Itoa(len(args))
	}
	if f.ProductID != 0 {
		args = append(args, f.ProductID)
		query += ` AND product_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AggregateRow
	for rows.Next() {
		var a AggregateRow
		if err := rows.Scan(&a.InventoryID, &a.ProductID, &a.BranchID, &a.Quantity,
			&a.CostPerUnit, &a.LowStockThreshold, &a.MaxStockLevel); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ExpiringBatches returns active lots carrying an expiration date.
func (r *Repository) ExpiringBatches(ctx context.Context, f Filters) ([]BatchRow, error) {
	query := `SELECT b.id, b.batch_number, b.inventory_id, a.product_id, a.branch_id,
			b.quantity, b.cost_per_unit, b.expiration_date
		FROM batches b
		JOIN inventory_aggregates a ON a.id = b.inventory_id
		WHERE b.is_active AND b.expiration_date IS NOT NULL`
	args := []any{}
	if f.BranchID != 0 {
		args = append(args, f.BranchID)
		query += ` AND a.branch_id = $` + strconv.Itoa(len(args))
	}
	if f.ProductID != 0 {
		args = append(args, f.ProductID)
		query += ` AND a.product_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY b.expiration_date, b.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchRow
	for rows.Next() {
		var b BatchRow
		if err := rows.Scan(&b.BatchID, &b.BatchNumber, &b.InventoryID, &b.ProductID, &b.BranchID,
			&b.Quantity, &b.CostPerUnit, &b.ExpirationDate); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

package inventory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frostline-foods/frostline/internal/platform/db"
)

const uniqueViolation = "23505"

// TxRepository exposes the operations that must share one transaction.
type TxRepository interface {
	GetAggregateForUpdate(ctx context.Context, productID, branchID int64) (Aggregate, error)
	GetAggregateByIDForUpdate(ctx context.Context, id int64) (Aggregate, error)
	CreateAggregate(ctx context.Context, agg Aggregate) (int64, error)
	BatchNumberExists(ctx context.Context, number string) (bool, error)
	InsertBatch(ctx context.Context, b Batch) (int64, error)
	ListActiveBatches(ctx context.Context, inventoryID int64) ([]Batch, error)
	UpdateAggregateStock(ctx context.Context, agg Aggregate) error
	MarkBatchExpired(ctx context.Context, batchID int64) error
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	InsertRestockHistory(ctx context.Context, h RestockHistory) (int64, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListAggregates(ctx context.Context, filter AggregateFilter) ([]Aggregate, error)
	GetAggregate(ctx context.Context, id int64) (Aggregate, error)
	ListExpiredActiveBatches(ctx context.Context, asOf time.Time) ([]Batch, error)
}

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const aggregateColumns = `id, product_id, branch_id, quantity, available_quantity, reserved_quantity,
	cost_per_unit, low_stock_threshold, min_stock_level, max_stock_level, last_restock_date, created_at, updated_at`

func scanAggregate(row pgx.Row) (Aggregate, error) {
	var a Aggregate
	var lastRestock *time.Time
	err := row.Scan(&a.ID, &a.ProductID, &a.BranchID, &a.Quantity, &a.AvailableQuantity, &a.ReservedQuantity,
		&a.CostPerUnit, &a.LowStockThreshold, &a.MinStockLevel, &a.MaxStockLevel, &lastRestock, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Aggregate{}, err
	}
	if lastRestock != nil {
		a.LastRestockDate = *lastRestock
	}
	return a, nil
}

func (r *txRepo) GetAggregateForUpdate(ctx context.Context, productID, branchID int64) (Aggregate, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+aggregateColumns+` FROM inventory_aggregates WHERE product_id = $1 AND branch_id = $2 FOR UPDATE`,
		productID, branchID)
	agg, err := scanAggregate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aggregate{}, ErrAggregateNotFound
	}
	return agg, err
}

func (r *txRepo) GetAggregateByIDForUpdate(ctx context.Context, id int64) (Aggregate, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+aggregateColumns+` FROM inventory_aggregates WHERE id = $1 FOR UPDATE`, id)
	agg, err := scanAggregate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aggregate{}, ErrAggregateNotFound
	}
	return agg, err
}

func (r *txRepo) CreateAggregate(ctx context.Context, agg Aggregate) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO inventory_aggregates
			(product_id, branch_id, quantity, available_quantity, reserved_quantity, cost_per_unit,
			 low_stock_threshold, min_stock_level, max_stock_level, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING id`,
		agg.ProductID, agg.BranchID, agg.Quantity, agg.AvailableQuantity, agg.ReservedQuantity,
		agg.CostPerUnit, agg.LowStockThreshold, agg.MinStockLevel, agg.MaxStockLevel).Scan(&id)
	if err != nil {
		// The (product_id, branch_id) unique index arbitrates concurrent first
		// restocks; the loser retries on a fresh snapshot that sees the winner.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrAggregateExists
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepo) BatchNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM batches WHERE batch_number = $1)`, number).Scan(&exists)
	return exists, err
}

func (r *txRepo) InsertBatch(ctx context.Context, b Batch) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO batches
			(inventory_id, batch_number, quantity, cost_per_unit, received_date, expiration_date,
			 supplier_name, supplier_contact, supplier_email, purchase_order_ref, status, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		 RETURNING id`,
		b.InventoryID, b.BatchNumber, b.Quantity, b.CostPerUnit, b.ReceivedDate, b.ExpirationDate,
		b.SupplierName, b.SupplierContact, b.SupplierEmail, b.PurchaseOrderRef, b.Status, b.IsActive).Scan(&id)
	if err != nil {
		// The unique constraint is the final arbiter for concurrent inserts
		// using the same number; surface it as a conflict, not a fatal error.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrDuplicateBatchNumber
		}
		return 0, err
	}
	return id, nil
}

const batchColumns = `id, inventory_id, batch_number, quantity, cost_per_unit, received_date, expiration_date,
	supplier_name, supplier_contact, supplier_email, purchase_order_ref, status, is_active, created_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.InventoryID, &b.BatchNumber, &b.Quantity, &b.CostPerUnit, &b.ReceivedDate,
		&b.ExpirationDate, &b.SupplierName, &b.SupplierContact, &b.SupplierEmail, &b.PurchaseOrderRef,
		&b.Status, &b.IsActive, &b.CreatedAt)
	return b, err
}

func collectBatches(rows pgx.Rows) ([]Batch, error) {
	defer rows.Close()
	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *txRepo) ListActiveBatches(ctx context.Context, inventoryID int64) ([]Batch, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE inventory_id = $1 AND is_active ORDER BY received_date, id`,
		inventoryID)
	if err != nil {
		return nil, err
	}
	return collectBatches(rows)
}

func (r *txRepo) UpdateAggregateStock(ctx context.Context, agg Aggregate) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE inventory_aggregates
		 SET quantity = $1, available_quantity = $2, cost_per_unit = $3, last_restock_date = $4, updated_at = NOW()
		 WHERE id = $5`,
		agg.Quantity, agg.AvailableQuantity, agg.CostPerUnit, nullableTime(agg.LastRestockDate), agg.ID)
	return err
}

func (r *txRepo) MarkBatchExpired(ctx context.Context, batchID int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE batches SET status = $1, is_active = FALSE WHERE id = $2`, BatchExpired, batchID)
	return err
}

func (r *Repository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO stock_movements
			(inventory_id, movement_type, quantity_change, quantity_before, quantity_after,
			 reference_id, reference_type, notes, performed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		 RETURNING id`,
		m.InventoryID, m.Type, m.QuantityChange, m.QuantityBefore, m.QuantityAfter,
		m.ReferenceID, m.ReferenceType, m.Notes, m.PerformedBy).Scan(&id)
	return id, err
}

func (r *Repository) InsertRestockHistory(ctx context.Context, h RestockHistory) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO restock_history
			(inventory_id, batch_id, product_id, branch_id, quantity, cost_per_unit,
			 supplier_name, purchase_order_ref, received_date, performed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		 RETURNING id`,
		h.InventoryID, h.BatchID, h.ProductID, h.BranchID, h.Quantity, h.CostPerUnit,
		h.SupplierName, h.PurchaseOrderRef, h.ReceivedDate, h.PerformedBy).Scan(&id)
	return id, err
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := `SELECT id, inventory_id, movement_type, quantity_change, quantity_before, quantity_after,
		reference_id, reference_type, notes, performed_by, created_at
		FROM stock_movements WHERE inventory_id = $1`
	args := []any{filter.InventoryID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += ` AND movement_type = $2`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.InventoryID, &m.Type, &m.QuantityChange, &m.QuantityBefore,
			&m.QuantityAfter, &m.ReferenceID, &m.ReferenceType, &m.Notes, &m.PerformedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *Repository) ListAggregates(ctx context.Context, filter AggregateFilter) ([]Aggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM inventory_aggregates WHERE 1=1`
	args := []any{}
	if filter.BranchID != 0 {
		args = append(args, filter.BranchID)
		query += ` AND branch_id = $` + itoa(len(args))
	}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		query += ` AND product_id = $` + itoa(len(args))
	}
	query += ` ORDER BY product_id, branch_id`
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggregates []Aggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates, rows.Err()
}

func (r *Repository) GetAggregate(ctx context.Context, id int64) (Aggregate, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+aggregateColumns+` FROM inventory_aggregates WHERE id = $1`, id)
	agg, err := scanAggregate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aggregate{}, ErrAggregateNotFound
	}
	return agg, err
}

func (r *Repository) ListExpiredActiveBatches(ctx context.Context, asOf time.Time) ([]Batch, error) {
	// A lot expiring on asOf is already unusable; the read models count it as
	// expired the same day.
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM batches
		 WHERE is_active AND expiration_date IS NOT NULL AND expiration_date <= $1
		 ORDER BY expiration_date, id`, asOf)
	if err != nil {
		return nil, err
	}
	return collectBatches(rows)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

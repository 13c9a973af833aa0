package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/frostline-foods/frostline/internal/platform/httpx"
)

// MovementType enumerates quantity-affecting events on an inventory line.
type MovementType string

const (
	// MovementRestock records a received lot.
	MovementRestock MovementType = "restock"
	// MovementFulfillment records an order deduction.
	MovementFulfillment MovementType = "fulfillment"
	// MovementAdjustment records a manual correction.
	MovementAdjustment MovementType = "adjustment"
	// MovementExpiry records stock written off by the expiry sweep.
	MovementExpiry MovementType = "expiry"
)

// BatchStatus enumerates the lifecycle states of a received lot.
type BatchStatus string

const (
	BatchActive    BatchStatus = "active"
	BatchExhausted BatchStatus = "exhausted"
	BatchExpired   BatchStatus = "expired"
)

// Aggregate is the per-(product, branch) stock summary row.
// Invariant: Quantity == sum of active batch quantities.
type Aggregate struct {
	ID                int64     `json:"id"`
	ProductID         int64     `json:"productId"`
	BranchID          int64     `json:"branchId"`
	Quantity          int64     `json:"quantity"`
	AvailableQuantity int64     `json:"availableQuantity"`
	ReservedQuantity  int64     `json:"reservedQuantity"`
	CostPerUnit       float64   `json:"costPerUnit"`
	LowStockThreshold int64     `json:"lowStockThreshold"`
	MinStockLevel     int64     `json:"minStockLevel"`
	MaxStockLevel     int64     `json:"maxStockLevel"`
	LastRestockDate   time.Time `json:"lastRestockDate"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// StockStatus classifies the line by quantity against its thresholds.
// Out-of-stock wins over low; overstock requires a configured max level.
func (a Aggregate) StockStatus() string {
	switch {
	case a.Quantity == 0:
		return "outOfStock"
	case a.Quantity < a.LowStockThreshold:
		return "low"
	case a.MaxStockLevel > 0 && a.Quantity > a.MaxStockLevel:
		return "overstocked"
	default:
		return "adequate"
	}
}

// Batch is one received lot. Quantity, cost and batch number are immutable
// after creation; only status transitions are allowed.
type Batch struct {
	ID               int64       `json:"id"`
	InventoryID      int64       `json:"inventoryId"`
	BatchNumber      string      `json:"batchNumber"`
	Quantity         int64       `json:"quantity"`
	CostPerUnit      float64     `json:"costPerUnit"`
	ReceivedDate     time.Time   `json:"receivedDate"`
	ExpirationDate   *time.Time  `json:"expirationDate,omitempty"`
	SupplierName     string      `json:"supplierName"`
	SupplierContact  string      `json:"supplierContact,omitempty"`
	SupplierEmail    string      `json:"supplierEmail,omitempty"`
	PurchaseOrderRef string      `json:"purchaseOrderRef,omitempty"`
	Status           BatchStatus `json:"status"`
	IsActive         bool        `json:"isActive"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// Movement is an append-only ledger entry. Once written it is never updated
// or deleted; it is the source of truth for reconciliation.
type Movement struct {
	ID             int64        `json:"id"`
	InventoryID    int64        `json:"inventoryId"`
	Type           MovementType `json:"type"`
	QuantityChange int64        `json:"quantityChange"`
	QuantityBefore int64        `json:"quantityBefore"`
	QuantityAfter  int64        `json:"quantityAfter"`
	ReferenceID    int64        `json:"referenceId,omitempty"`
	ReferenceType  string       `json:"referenceType,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	PerformedBy    string       `json:"performedBy"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// RestockHistory is the denormalized receipt record kept for reporting.
type RestockHistory struct {
	ID               int64
	InventoryID      int64
	BatchID          int64
	ProductID        int64
	BranchID         int64
	Quantity         int64
	CostPerUnit      float64
	SupplierName     string
	PurchaseOrderRef string
	ReceivedDate     time.Time
	PerformedBy      string
	CreatedAt        time.Time
}

// RestockRequest is the input to the restock workflow.
type RestockRequest struct {
	ProductID        int64      `json:"productId" validate:"required,gt=0"`
	BranchID         int64      `json:"branchId"`
	InventoryID      int64      `json:"inventoryId"`
	Quantity         int64      `json:"quantity" validate:"required,gt=0"`
	CostPerUnit      float64    `json:"costPerUnit" validate:"gte=0"`
	SupplierName     string     `json:"supplierName" validate:"required"`
	SupplierContact  string     `json:"supplierContact"`
	SupplierEmail    string     `json:"supplierEmail" validate:"omitempty,email"`
	BatchNumber      string     `json:"batchNumber"`
	PurchaseOrderRef string     `json:"purchaseOrderRef"`
	ReceivedDate     time.Time  `json:"receivedDate"`
	ExpirationDate   *time.Time `json:"expirationDate"`
	Notes            string     `json:"notes"`
	PerformedBy      string     `json:"-"`
}

// SecondaryFailure reports one best-effort bookkeeping write that failed
// after the primary stock update committed.
type SecondaryFailure struct {
	Effect  string `json:"effect"`
	Message string `json:"message"`
}

// RestockResult is the outcome of a committed restock. Secondary lists the
// bookkeeping effects that failed; the stock update itself is durable even
// when Secondary is non-empty. Callers that need a complete audit trail must
// check it.
type RestockResult struct {
	BatchID          int64              `json:"batchId"`
	BatchNumber      string             `json:"batchNumber"`
	InventoryID      int64              `json:"inventoryId"`
	PreviousQuantity int64              `json:"previousQuantity"`
	NewQuantity      int64              `json:"newQuantity"`
	QuantityAdded    int64              `json:"quantityAdded"`
	NewAverageCost   float64            `json:"newAverageCost"`
	TotalCost        float64            `json:"totalCost"`
	Secondary        []SecondaryFailure `json:"secondaryFailures,omitempty"`
}

// MovementFilter narrows movement ledger reads.
type MovementFilter struct {
	InventoryID int64
	Type        MovementType
	From        time.Time
	To          time.Time
	Limit       int
}

// AggregateFilter narrows aggregate listings.
type AggregateFilter struct {
	BranchID  int64
	ProductID int64
	Limit     int
	Offset    int
}

// SweepResult summarises one expiry sweep run.
type SweepResult struct {
	ExpiredBatches     int                `json:"expiredBatches"`
	QuantityWrittenOff int64              `json:"quantityWrittenOff"`
	Secondary          []SecondaryFailure `json:"secondaryFailures,omitempty"`
}

// ValidationError names the offending input field. It is returned before any
// write happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("inventory: %s: %s", e.Field, e.Message)
}

// ProblemField implements httpx.Fielder.
func (e *ValidationError) ProblemField() string { return e.Field }

// Is maps validation errors onto the shared HTTP error class.
func (e *ValidationError) Is(target error) bool { return target == httpx.ErrValidation }

// Sentinel errors for the ledger.
var (
	// ErrProductNotFound indicates the product does not exist or is unavailable.
	ErrProductNotFound = errors.New("inventory: product not found or unavailable")
	// ErrAggregateNotFound indicates a missing inventory row.
	ErrAggregateNotFound = errors.New("inventory: aggregate not found")
	// ErrAggregateExists indicates a concurrent first restock already created
	// the (product, branch) row. Retryable on a fresh transaction.
	ErrAggregateExists = errors.New("inventory: aggregate already exists")
	// ErrDuplicateBatchNumber indicates the batch number is already taken.
	ErrDuplicateBatchNumber = errors.New("inventory: batch number already exists")
	// ErrBatchNumberExhausted indicates all generation attempts collided.
	ErrBatchNumberExhausted = errors.New("inventory: batch number generation exhausted")
	// ErrNegativeCostingInput indicates a negative quantity or cost reached the
	// costing engine.
	ErrNegativeCostingInput = errors.New("inventory: negative quantity or cost")
)

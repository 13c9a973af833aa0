package analytics

import "time"

// StockStatus classifies one inventory line by quantity against its
// thresholds.
type StockStatus string

const (
	StockOutOfStock  StockStatus = "outOfStock"
	StockLow         StockStatus = "low"
	StockOverstocked StockStatus = "overstocked"
	StockAdequate    StockStatus = "adequate"
)

// InventoryMetrics summarises aggregate stock across the filter scope.
type InventoryMetrics struct {
	TotalItems       int     `json:"totalItems"`
	TotalQuantity    int64   `json:"totalQuantity"`
	TotalValue       float64 `json:"totalValue"`
	LowStockCount    int     `json:"lowStockCount"`
	OutOfStockCount  int     `json:"outOfStockCount"`
	OverstockedCount int     `json:"overstockedCount"`
}

// ExpiringBatch is one lot inside an expiration horizon, surfaced for
// prioritized sale or disposal.
type ExpiringBatch struct {
	BatchID        int64     `json:"batchId"`
	BatchNumber    string    `json:"batchNumber"`
	InventoryID    int64     `json:"inventoryId"`
	ProductID      int64     `json:"productId"`
	BranchID       int64     `json:"branchId"`
	Quantity       int64     `json:"quantity"`
	CostPerUnit    float64   `json:"costPerUnit"`
	ExpirationDate time.Time `json:"expirationDate"`
	DaysUntil      int       `json:"daysUntilExpiry"`
}

// ExpirationMetrics buckets active lots by days until expiry.
type ExpirationMetrics struct {
	Expired         int             `json:"expired"`
	Within7Days     int             `json:"within7Days"`
	Within14Days    int             `json:"within14Days"`
	Within30Days    int             `json:"within30Days"`
	CriticalBatches []ExpiringBatch `json:"criticalBatches"`
}

// ValuationRow is one inventory line's contribution to stock value.
type ValuationRow struct {
	InventoryID int64       `json:"inventoryId"`
	ProductID   int64       `json:"productId"`
	BranchID    int64       `json:"branchId"`
	Quantity    int64       `json:"quantity"`
	CostPerUnit float64     `json:"costPerUnit"`
	Value       float64     `json:"value"`
	Status      StockStatus `json:"status"`
}

// Valuation is the stock value report.
type Valuation struct {
	Rows       []ValuationRow `json:"rows"`
	TotalValue float64        `json:"totalValue"`
}

// Filters scope the read-models. Zero values mean "all".
type Filters struct {
	BranchID  int64
	ProductID int64
}

package bulkimport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frostline-foods/frostline/internal/inventory"
)

// Restocker is the slice of the ledger the import needs.
type Restocker interface {
	Restock(ctx context.Context, req inventory.RestockRequest) (inventory.RestockResult, error)
}

// Service runs spreadsheet imports through the restock workflow.
type Service struct {
	restocker Restocker
	logger    *slog.Logger
	loc       *time.Location
}

// NewService constructs Service.
func NewService(restocker Restocker, logger *slog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{restocker: restocker, logger: logger, loc: loc}
}

// Import processes rows sequentially so per-row error attribution stays
// deterministic and generated batch numbers never race within one run. A
// failed row is recorded and processing continues; re-running an import is
// at-least-once, not idempotent.
func (s *Service) Import(ctx context.Context, rows []Row, operator string) ImportResult {
	result := ImportResult{
		ImportID:  uuid.NewString(),
		TotalRows: len(rows),
	}

	for _, row := range rows {
		req, rowErr := s.buildRequest(row, operator)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}

		restock, err := s.restocker.Restock(ctx, req)
		if err != nil {
			result.Errors = append(result.Errors, rowError(row.Line, err))
			continue
		}
		result.SuccessCount++
		result.CreatedBatches = append(result.CreatedBatches, restock.BatchID)
		result.UpdatedAggregates = appendUnique(result.UpdatedAggregates, restock.InventoryID)
	}

	result.Success = result.SuccessCount > 0
	s.logger.Info("bulk import finished",
		slog.String("import_id", result.ImportID),
		slog.Int("total_rows", result.TotalRows),
		slog.Int("success_count", result.SuccessCount),
		slog.Int("error_count", len(result.Errors)))
	return result
}

func (s *Service) buildRequest(row Row, operator string) (inventory.RestockRequest, *RowError) {
	fail := func(field, message string) (inventory.RestockRequest, *RowError) {
		return inventory.RestockRequest{}, &RowError{Row: row.Line, Field: field, Message: message}
	}

	if row.ProductID == "" {
		return fail("productId", "is required")
	}
	productID, err := parseInt(row.ProductID)
	if err != nil {
		return fail("productId", err.Error())
	}
	if row.Quantity == "" {
		return fail("quantity", "is required")
	}
	quantity, err := parseInt(row.Quantity)
	if err != nil {
		return fail("quantity", err.Error())
	}
	var cost float64
	if row.CostPerUnit != "" {
		if cost, err = parseFloat(row.CostPerUnit); err != nil {
			return fail("costPerUnit", err.Error())
		}
	}
	received, err := parseDate(row.ReceivedDate, s.loc)
	if err != nil {
		return fail("receivedDate", err.Error())
	}
	expiration, err := parseDate(row.ExpirationDate, s.loc)
	if err != nil {
		return fail("expirationDate", err.Error())
	}

	req := inventory.RestockRequest{
		ProductID:        productID,
		Quantity:         quantity,
		CostPerUnit:      cost,
		SupplierName:     row.SupplierName,
		SupplierContact:  row.SupplierContact,
		SupplierEmail:    row.SupplierEmail,
		BatchNumber:      row.BatchNumber,
		PurchaseOrderRef: row.PurchaseOrderRef,
		ReceivedDate:     received,
		Notes:            row.Notes,
		PerformedBy:      operator,
	}
	if !expiration.IsZero() {
		req.ExpirationDate = &expiration
	}
	return req, nil
}

func rowError(line int, err error) RowError {
	var verr *inventory.ValidationError
	if errors.As(err, &verr) {
		return RowError{Row: line, Field: verr.Field, Message: verr.Message}
	}
	switch {
	case errors.Is(err, inventory.ErrProductNotFound):
		return RowError{Row: line, Field: "productId", Message: "product not found or unavailable"}
	case errors.Is(err, inventory.ErrDuplicateBatchNumber):
		return RowError{Row: line, Field: "batchNumber", Message: "batch number already exists"}
	case errors.Is(err, inventory.ErrBatchNumberExhausted):
		return RowError{Row: line, Field: "batchNumber", Message: "batch number generation exhausted"}
	default:
		return RowError{Row: line, Field: "row", Message: err.Error()}
	}
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

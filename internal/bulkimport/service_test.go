package bulkimport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frostline-foods/frostline/internal/inventory"
)

type fakeRestocker struct {
	requests []inventory.RestockRequest
	fail     map[int64]error
	nextID   int64
}

func (f *fakeRestocker) Restock(_ context.Context, req inventory.RestockRequest) (inventory.RestockResult, error) {
	if err, ok := f.fail[req.ProductID]; ok {
		return inventory.RestockResult{}, err
	}
	f.requests = append(f.requests, req)
	f.nextID++
	return inventory.RestockResult{
		BatchID:     f.nextID,
		BatchNumber: fmt.Sprintf("B-%03d", f.nextID),
		InventoryID: req.ProductID, // one line per product keeps the fake simple
		NewQuantity: req.Quantity,
	}, nil
}

func newImportService(restocker Restocker) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(restocker, logger, time.UTC)
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("one bad row never aborts the batch", func(t *testing.T) {
		restocker := &fakeRestocker{}
		svc := newImportService(restocker)

		rows := make([]Row, 0, 10)
		for i := 1; i <= 10; i++ {
			row := Row{
				Line:         i,
				ProductID:    fmt.Sprintf("%d", i),
				Quantity:     "10",
				CostPerUnit:  "5.50",
				SupplierName: "Polar Supply Co",
			}
			if i == 4 {
				row.Quantity = "not-a-number"
			}
			rows = append(rows, row)
		}

		result := svc.Import(ctx, rows, "alice")
		require.True(t, result.Success)
		require.Equal(t, 10, result.TotalRows)
		require.Equal(t, 9, result.SuccessCount)
		require.Len(t, result.Errors, 1)
		require.Equal(t, 4, result.Errors[0].Row)
		require.Equal(t, "quantity", result.Errors[0].Field)
		require.Len(t, result.CreatedBatches, 9)
		require.NotEmpty(t, result.ImportID)
	})

	t.Run("rows carry the operator and parsed values", func(t *testing.T) {
		restocker := &fakeRestocker{}
		svc := newImportService(restocker)

		result := svc.Import(ctx, []Row{{
			Line:           1,
			ProductID:      "12",
			Quantity:       "1,000",
			CostPerUnit:    "$49.99",
			ReceivedDate:   "2026-02-01",
			ExpirationDate: "46096",
			SupplierName:   "Polar Supply Co",
		}}, "alice")
		require.True(t, result.Success)
		require.Len(t, restocker.requests, 1)

		req := restocker.requests[0]
		require.Equal(t, int64(12), req.ProductID)
		require.Equal(t, int64(1000), req.Quantity)
		require.InDelta(t, 49.99, req.CostPerUnit, 1e-9)
		require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), req.ReceivedDate)
		require.NotNil(t, req.ExpirationDate)
		require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *req.ExpirationDate)
		require.Equal(t, "alice", req.PerformedBy)
	})

	t.Run("unknown product fails only its row", func(t *testing.T) {
		restocker := &fakeRestocker{fail: map[int64]error{7: inventory.ErrProductNotFound}}
		svc := newImportService(restocker)

		result := svc.Import(ctx, []Row{
			{Line: 1, ProductID: "7", Quantity: "5", SupplierName: "Polar Supply Co"},
			{Line: 2, ProductID: "8", Quantity: "5", SupplierName: "Polar Supply Co"},
		}, "alice")
		require.True(t, result.Success)
		require.Equal(t, 1, result.SuccessCount)
		require.Len(t, result.Errors, 1)
		require.Equal(t, 1, result.Errors[0].Row)
		require.Equal(t, "productId", result.Errors[0].Field)
	})

	t.Run("ledger validation errors keep their field", func(t *testing.T) {
		restocker := &fakeRestocker{fail: map[int64]error{
			9: &inventory.ValidationError{Field: "expirationDate", Message: "expiration date must be after received date"},
		}}
		svc := newImportService(restocker)

		result := svc.Import(ctx, []Row{
			{Line: 1, ProductID: "9", Quantity: "5", SupplierName: "Polar Supply Co"},
		}, "alice")
		require.False(t, result.Success)
		require.Equal(t, "expirationDate", result.Errors[0].Field)
	})

	t.Run("updated aggregates are deduplicated", func(t *testing.T) {
		restocker := &fakeRestocker{}
		svc := newImportService(restocker)

		result := svc.Import(ctx, []Row{
			{Line: 1, ProductID: "3", Quantity: "5", SupplierName: "Polar Supply Co"},
			{Line: 2, ProductID: "3", Quantity: "5", SupplierName: "Polar Supply Co"},
		}, "alice")
		require.Equal(t, 2, result.SuccessCount)
		require.Len(t, result.CreatedBatches, 2)
		require.Len(t, result.UpdatedAggregates, 1)
	})

	t.Run("all rows failing is not success", func(t *testing.T) {
		svc := newImportService(&fakeRestocker{})
		result := svc.Import(ctx, []Row{{Line: 1}}, "alice")
		require.False(t, result.Success)
		require.Zero(t, result.SuccessCount)
	})
}

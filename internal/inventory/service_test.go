package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	aggregates map[int64]Aggregate
	batches    map[int64]Batch
	movements  []Movement
	history    []RestockHistory
	nextID     int64

	failMovement bool
	failHistory  bool

	// raceCreate makes the next CreateAggregate lose to a concurrent writer:
	// the call fails with ErrAggregateExists and the winner's row appears once
	// the losing transaction rolls back.
	raceCreate    bool
	pendingWinner *Aggregate
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		aggregates: map[int64]Aggregate{},
		batches:    map[int64]Batch{},
	}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

// WithTx runs fn against the fake itself and restores the previous state when
// fn fails, mirroring a rollback.
func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	aggSnap := maps.Clone(f.aggregates)
	batchSnap := maps.Clone(f.batches)
	idSnap := f.nextID
	if err := fn(ctx, f); err != nil {
		f.aggregates = aggSnap
		f.batches = batchSnap
		f.nextID = idSnap
		if f.pendingWinner != nil {
			w := *f.pendingWinner
			w.ID = f.id()
			f.aggregates[w.ID] = w
			f.pendingWinner = nil
		}
		return err
	}
	return nil
}

func (f *fakeRepo) GetAggregateForUpdate(_ context.Context, productID, branchID int64) (Aggregate, error) {
	for _, agg := range f.aggregates {
		if agg.ProductID == productID && agg.BranchID == branchID {
			return agg, nil
		}
	}
	return Aggregate{}, ErrAggregateNotFound
}

func (f *fakeRepo) GetAggregateByIDForUpdate(_ context.Context, id int64) (Aggregate, error) {
	agg, ok := f.aggregates[id]
	if !ok {
		return Aggregate{}, ErrAggregateNotFound
	}
	return agg, nil
}

func (f *fakeRepo) CreateAggregate(_ context.Context, agg Aggregate) (int64, error) {
	if f.raceCreate {
		f.raceCreate = false
		won := agg
		f.pendingWinner = &won
		return 0, ErrAggregateExists
	}
	for _, existing := range f.aggregates {
		if existing.ProductID == agg.ProductID && existing.BranchID == agg.BranchID {
			return 0, ErrAggregateExists
		}
	}
	agg.ID = f.id()
	f.aggregates[agg.ID] = agg
	return agg.ID, nil
}

func (f *fakeRepo) BatchNumberExists(_ context.Context, number string) (bool, error) {
	for _, b := range f.batches {
		if b.BatchNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) InsertBatch(_ context.Context, b Batch) (int64, error) {
	if taken, _ := f.BatchNumberExists(context.Background(), b.BatchNumber); taken {
		return 0, ErrDuplicateBatchNumber
	}
	b.ID = f.id()
	f.batches[b.ID] = b
	return b.ID, nil
}

func (f *fakeRepo) ListActiveBatches(_ context.Context, inventoryID int64) ([]Batch, error) {
	var actives []Batch
	for _, b := range f.batches {
		if b.InventoryID == inventoryID && b.IsActive {
			actives = append(actives, b)
		}
	}
	slices.SortFunc(actives, func(a, b Batch) int { return int(a.ID - b.ID) })
	return actives, nil
}

func (f *fakeRepo) UpdateAggregateStock(_ context.Context, agg Aggregate) error {
	stored, ok := f.aggregates[agg.ID]
	if !ok {
		return ErrAggregateNotFound
	}
	stored.Quantity = agg.Quantity
	stored.AvailableQuantity = agg.AvailableQuantity
	stored.CostPerUnit = agg.CostPerUnit
	stored.LastRestockDate = agg.LastRestockDate
	f.aggregates[agg.ID] = stored
	return nil
}

func (f *fakeRepo) MarkBatchExpired(_ context.Context, batchID int64) error {
	b, ok := f.batches[batchID]
	if !ok {
		return errors.New("batch not found")
	}
	b.Status = BatchExpired
	b.IsActive = false
	f.batches[batchID] = b
	return nil
}

func (f *fakeRepo) InsertMovement(_ context.Context, m Movement) (int64, error) {
	if f.failMovement {
		return 0, errors.New("movement store unavailable")
	}
	m.ID = f.id()
	f.movements = append(f.movements, m)
	return m.ID, nil
}

func (f *fakeRepo) InsertRestockHistory(_ context.Context, h RestockHistory) (int64, error) {
	if f.failHistory {
		return 0, errors.New("history store unavailable")
	}
	h.ID = f.id()
	f.history = append(f.history, h)
	return h.ID, nil
}

func (f *fakeRepo) ListMovements(_ context.Context, filter MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range f.movements {
		if m.InventoryID != filter.InventoryID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepo) ListAggregates(_ context.Context, filter AggregateFilter) ([]Aggregate, error) {
	var out []Aggregate
	for _, agg := range f.aggregates {
		if filter.BranchID != 0 && agg.BranchID != filter.BranchID {
			continue
		}
		if filter.ProductID != 0 && agg.ProductID != filter.ProductID {
			continue
		}
		out = append(out, agg)
	}
	slices.SortFunc(out, func(a, b Aggregate) int { return int(a.ID - b.ID) })
	return out, nil
}

func (f *fakeRepo) GetAggregate(_ context.Context, id int64) (Aggregate, error) {
	return f.GetAggregateByIDForUpdate(context.Background(), id)
}

func (f *fakeRepo) ListExpiredActiveBatches(_ context.Context, asOf time.Time) ([]Batch, error) {
	var out []Batch
	for _, b := range f.batches {
		if b.IsActive && b.ExpirationDate != nil && !b.ExpirationDate.After(asOf) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Batch) int { return int(a.ID - b.ID) })
	return out, nil
}

type fakeProducts struct {
	refs map[int64]ProductRef
}

func (f *fakeProducts) Lookup(_ context.Context, productID int64) (ProductRef, error) {
	ref, ok := f.refs[productID]
	if !ok {
		return ProductRef{}, ErrProductNotFound
	}
	return ref, nil
}

type fakeAudit struct {
	events []AuditEvent
	err    error
}

func (f *fakeAudit) Record(_ context.Context, event AuditEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeCache struct {
	bumps int
	err   error
}

func (f *fakeCache) Bump(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.bumps++
	return nil
}

type serviceFixture struct {
	svc      *Service
	repo     *fakeRepo
	products *fakeProducts
	audit    *fakeAudit
	cache    *fakeCache
	now      time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := newFakeRepo()
	products := &fakeProducts{refs: map[int64]ProductRef{
		1: {ID: 1, Code: "ICE-01", Name: "Ice Cream Tub", Available: true},
		2: {ID: 2, Code: "FSH-09", Name: "Frozen Fish Fillet", Available: false},
	}}
	audit := &fakeAudit{}
	cache := &fakeCache{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(repo, products, audit, cache, logger, ServiceConfig{
		Location:     time.UTC,
		MainBranchID: 7,
	})
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &serviceFixture{svc: svc, repo: repo, products: products, audit: audit, cache: cache, now: now}
}

func (fx *serviceFixture) seedAggregate(t *testing.T, qty int64, cost float64) Aggregate {
	t.Helper()
	id, err := fx.repo.CreateAggregate(context.Background(), Aggregate{
		ProductID:         1,
		BranchID:          7,
		Quantity:          qty,
		AvailableQuantity: qty,
		CostPerUnit:       cost,
		LowStockThreshold: defaultLowStockThreshold,
		MinStockLevel:     defaultMinStockLevel,
	})
	require.NoError(t, err)
	if qty > 0 {
		_, err = fx.repo.InsertBatch(context.Background(), Batch{
			InventoryID: id,
			BatchNumber: "SEED-001",
			Quantity:    qty,
			CostPerUnit: cost,
			Status:      BatchActive,
			IsActive:    true,
		})
		require.NoError(t, err)
	}
	return fx.repo.aggregates[id]
}

func TestServiceRestock(t *testing.T) {
	ctx := context.Background()

	t.Run("blends average cost and updates the aggregate", func(t *testing.T) {
		fx := newServiceFixture(t)
		agg := fx.seedAggregate(t, 100, 50)

		result, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID:    1,
			Quantity:     50,
			CostPerUnit:  80,
			SupplierName: "Polar Supply Co",
			PerformedBy:  "alice",
		})
		require.NoError(t, err)
		require.Empty(t, result.Secondary)
		require.Equal(t, int64(100), result.PreviousQuantity)
		require.Equal(t, int64(150), result.NewQuantity)
		require.Equal(t, int64(50), result.QuantityAdded)
		require.InDelta(t, 60.0, result.NewAverageCost, 1e-9)
		require.InDelta(t, 4000.0, result.TotalCost, 1e-9)

		stored := fx.repo.aggregates[agg.ID]
		require.Equal(t, int64(150), stored.Quantity)
		require.Equal(t, int64(150), stored.AvailableQuantity)
		require.InDelta(t, 60.0, stored.CostPerUnit, 1e-9)
		require.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), stored.LastRestockDate)
	})

	t.Run("aggregate quantity equals the sum of active batches", func(t *testing.T) {
		fx := newServiceFixture(t)
		agg := fx.seedAggregate(t, 100, 50)

		_, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID: 1, Quantity: 50, CostPerUnit: 80, SupplierName: "Polar Supply Co",
		})
		require.NoError(t, err)

		actives, err := fx.repo.ListActiveBatches(ctx, agg.ID)
		require.NoError(t, err)
		var sum int64
		for _, b := range actives {
			sum += b.Quantity
		}
		require.Equal(t, fx.repo.aggregates[agg.ID].Quantity, sum)
	})

	t.Run("first restock creates the aggregate with defaults", func(t *testing.T) {
		fx := newServiceFixture(t)

		result, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID:    1,
			Quantity:     30,
			CostPerUnit:  42.5,
			SupplierName: "Polar Supply Co",
			PerformedBy:  "alice",
		})
		require.NoError(t, err)

		stored := fx.repo.aggregates[result.InventoryID]
		require.Equal(t, int64(1), stored.ProductID)
		require.Equal(t, int64(7), stored.BranchID, "defaults to the main branch")
		require.Equal(t, int64(30), stored.Quantity)
		require.Equal(t, int64(defaultLowStockThreshold), stored.LowStockThreshold)
		require.Equal(t, int64(defaultMinStockLevel), stored.MinStockLevel)
		require.InDelta(t, 42.5, stored.CostPerUnit, 1e-9)

		require.Len(t, fx.audit.events, 1)
		require.Equal(t, "create", fx.audit.events[0].Action)
		require.Nil(t, fx.audit.events[0].OldData)
	})

	t.Run("first restock retries after losing the creation race", func(t *testing.T) {
		fx := newServiceFixture(t)
		fx.repo.raceCreate = true

		result, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID:    1,
			Quantity:     30,
			CostPerUnit:  42.5,
			SupplierName: "Polar Supply Co",
			PerformedBy:  "alice",
		})
		require.NoError(t, err)

		rows, err := fx.repo.ListAggregates(ctx, AggregateFilter{ProductID: 1, BranchID: 7})
		require.NoError(t, err)
		require.Len(t, rows, 1, "one row per (product, branch)")
		require.Equal(t, rows[0].ID, result.InventoryID)
		require.Equal(t, int64(30), rows[0].Quantity)

		require.Len(t, fx.audit.events, 1)
		require.Equal(t, "update", fx.audit.events[0].Action, "the winner's row is updated, not recreated")
	})

	t.Run("history records the aggregate's branch when addressed by inventory id", func(t *testing.T) {
		fx := newServiceFixture(t)
		id, err := fx.repo.CreateAggregate(ctx, Aggregate{
			ProductID:         1,
			BranchID:          3,
			LowStockThreshold: defaultLowStockThreshold,
			MinStockLevel:     defaultMinStockLevel,
		})
		require.NoError(t, err)

		_, err = fx.svc.Restock(ctx, RestockRequest{
			ProductID:    1,
			InventoryID:  id,
			Quantity:     20,
			CostPerUnit:  12,
			SupplierName: "Polar Supply Co",
			PerformedBy:  "alice",
		})
		require.NoError(t, err)

		require.Len(t, fx.repo.history, 1)
		require.Equal(t, int64(3), fx.repo.history[0].BranchID, "not rewritten to the main branch")
		require.Equal(t, int64(1), fx.repo.history[0].ProductID)
	})

	t.Run("records movement, history, audit and cache bump", func(t *testing.T) {
		fx := newServiceFixture(t)
		fx.seedAggregate(t, 100, 50)

		result, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID:    1,
			Quantity:     50,
			CostPerUnit:  80,
			SupplierName: "Polar Supply Co",
			Notes:        "weekly delivery",
			PerformedBy:  "alice",
		})
		require.NoError(t, err)

		require.Len(t, fx.repo.movements, 1)
		m := fx.repo.movements[0]
		require.Equal(t, MovementRestock, m.Type)
		require.Equal(t, int64(50), m.QuantityChange)
		require.Equal(t, int64(100), m.QuantityBefore)
		require.Equal(t, int64(150), m.QuantityAfter)
		require.Equal(t, result.BatchID, m.ReferenceID)
		require.Equal(t, "batch", m.ReferenceType)
		require.Equal(t, "alice", m.PerformedBy)

		require.Len(t, fx.repo.history, 1)
		require.Equal(t, "Polar Supply Co", fx.repo.history[0].SupplierName)

		require.Len(t, fx.audit.events, 1)
		require.Equal(t, "update", fx.audit.events[0].Action)
		require.Equal(t, int64(100), fx.audit.events[0].OldData["quantity"])
		require.Equal(t, int64(150), fx.audit.events[0].NewData["quantity"])

		require.Equal(t, 1, fx.cache.bumps)
	})

	t.Run("duplicate supplied batch number leaves no trace", func(t *testing.T) {
		fx := newServiceFixture(t)
		agg := fx.seedAggregate(t, 100, 50)

		_, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID:    1,
			Quantity:     50,
			CostPerUnit:  80,
			SupplierName: "Polar Supply Co",
			BatchNumber:  "SEED-001",
		})
		require.ErrorIs(t, err, ErrDuplicateBatchNumber)

		require.Equal(t, int64(100), fx.repo.aggregates[agg.ID].Quantity)
		require.Len(t, fx.repo.batches, 1)
		require.Empty(t, fx.repo.movements)
		require.Empty(t, fx.repo.history)
		require.Empty(t, fx.audit.events)
		require.Zero(t, fx.cache.bumps)
	})

	t.Run("generated number skips taken candidates", func(t *testing.T) {
		fx := newServiceFixture(t)
		agg := fx.seedAggregate(t, 10, 5)

		seed := BatchNumberSeed{ProductCode: "ICE-01", Now: fx.now}
		_, err := fx.repo.InsertBatch(ctx, Batch{
			InventoryID: agg.ID,
			BatchNumber: GenerateBatchNumber(seed, 1),
			Quantity:    1,
			Status:      BatchActive,
		})
		require.NoError(t, err)

		result, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID: 1, Quantity: 5, CostPerUnit: 5, SupplierName: "Polar Supply Co",
		})
		require.NoError(t, err)
		require.Equal(t, GenerateBatchNumber(seed, 2), result.BatchNumber)
	})

	t.Run("generation gives up after bounded attempts", func(t *testing.T) {
		fx := newServiceFixture(t)
		agg := fx.seedAggregate(t, 10, 5)

		seed := BatchNumberSeed{ProductCode: "ICE-01", Now: fx.now}
		for attempt := 1; attempt <= maxBatchNumberAttempts; attempt++ {
			_, err := fx.repo.InsertBatch(ctx, Batch{
				InventoryID: agg.ID,
				BatchNumber: GenerateBatchNumber(seed, attempt),
				Quantity:    1,
			})
			require.NoError(t, err)
		}

		_, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID: 1, Quantity: 5, CostPerUnit: 5, SupplierName: "Polar Supply Co",
		})
		require.ErrorIs(t, err, ErrBatchNumberExhausted)
	})

	t.Run("secondary effect failure does not fail the restock", func(t *testing.T) {
		fx := newServiceFixture(t)
		agg := fx.seedAggregate(t, 100, 50)
		fx.repo.failMovement = true

		result, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID: 1, Quantity: 50, CostPerUnit: 80, SupplierName: "Polar Supply Co",
		})
		require.NoError(t, err)
		require.Len(t, result.Secondary, 1)
		require.Equal(t, "movement", result.Secondary[0].Effect)

		// The stock update stays committed and later effects still ran.
		require.Equal(t, int64(150), fx.repo.aggregates[agg.ID].Quantity)
		require.Len(t, fx.repo.history, 1)
		require.Equal(t, 1, fx.cache.bumps)
	})

	t.Run("unknown product", func(t *testing.T) {
		fx := newServiceFixture(t)
		_, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID: 99, Quantity: 5, CostPerUnit: 5, SupplierName: "Polar Supply Co",
		})
		require.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("unavailable product", func(t *testing.T) {
		fx := newServiceFixture(t)
		_, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID: 2, Quantity: 5, CostPerUnit: 5, SupplierName: "Polar Supply Co",
		})
		require.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("inventory id must belong to the product", func(t *testing.T) {
		fx := newServiceFixture(t)
		agg := fx.seedAggregate(t, 10, 5)

		fx.products.refs[3] = ProductRef{ID: 3, Code: "VEG-02", Available: true}
		_, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID: 3, InventoryID: agg.ID, Quantity: 5, CostPerUnit: 5, SupplierName: "Polar Supply Co",
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "inventoryId", verr.Field)
	})
}

func TestServiceRestockValidation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		req   RestockRequest
		field string
	}{
		{
			name:  "missing quantity",
			req:   RestockRequest{ProductID: 1, SupplierName: "Polar Supply Co"},
			field: "quantity",
		},
		{
			name:  "negative quantity",
			req:   RestockRequest{ProductID: 1, Quantity: -3, SupplierName: "Polar Supply Co"},
			field: "quantity",
		},
		{
			name:  "negative cost",
			req:   RestockRequest{ProductID: 1, Quantity: 5, CostPerUnit: -1, SupplierName: "Polar Supply Co"},
			field: "costPerUnit",
		},
		{
			name:  "missing supplier",
			req:   RestockRequest{ProductID: 1, Quantity: 5},
			field: "supplierName",
		},
		{
			name:  "bad supplier email",
			req:   RestockRequest{ProductID: 1, Quantity: 5, SupplierName: "Polar Supply Co", SupplierEmail: "not-an-email"},
			field: "supplierEmail",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newServiceFixture(t)
			_, err := fx.svc.Restock(ctx, tc.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
			require.Empty(t, fx.repo.batches)
		})
	}

	t.Run("received date in the future", func(t *testing.T) {
		fx := newServiceFixture(t)
		future := fx.now.AddDate(0, 0, 2)
		_, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID: 1, Quantity: 5, CostPerUnit: 5, SupplierName: "Polar Supply Co",
			ReceivedDate: future,
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "receivedDate", verr.Field)
	})

	t.Run("expiration before received date", func(t *testing.T) {
		fx := newServiceFixture(t)
		received := fx.now.AddDate(0, 0, -1)
		expiry := fx.now.AddDate(0, 0, -3)
		_, err := fx.svc.Restock(ctx, RestockRequest{
			ProductID: 1, Quantity: 5, CostPerUnit: 5, SupplierName: "Polar Supply Co",
			ReceivedDate: received, ExpirationDate: &expiry,
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "expirationDate", verr.Field)
	})
}

func TestServiceSweepExpiredBatches(t *testing.T) {
	ctx := context.Background()

	t.Run("writes off expired stock and reconciles the aggregate", func(t *testing.T) {
		fx := newServiceFixture(t)
		agg := fx.seedAggregate(t, 0, 0)

		past := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		future := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		_, err := fx.repo.InsertBatch(ctx, Batch{
			InventoryID: agg.ID, BatchNumber: "OLD-001", Quantity: 40, CostPerUnit: 10,
			ExpirationDate: &past, Status: BatchActive, IsActive: true,
		})
		require.NoError(t, err)
		_, err = fx.repo.InsertBatch(ctx, Batch{
			InventoryID: agg.ID, BatchNumber: "NEW-001", Quantity: 60, CostPerUnit: 20,
			ExpirationDate: &future, Status: BatchActive, IsActive: true,
		})
		require.NoError(t, err)

		stored := fx.repo.aggregates[agg.ID]
		stored.Quantity = 100
		stored.AvailableQuantity = 100
		fx.repo.aggregates[agg.ID] = stored

		result, err := fx.svc.SweepExpiredBatches(ctx, time.Time{})
		require.NoError(t, err)
		require.Equal(t, 1, result.ExpiredBatches)
		require.Equal(t, int64(40), result.QuantityWrittenOff)
		require.Empty(t, result.Secondary)

		stored = fx.repo.aggregates[agg.ID]
		require.Equal(t, int64(60), stored.Quantity)
		require.Equal(t, int64(60), stored.AvailableQuantity)
		require.InDelta(t, 20.0, stored.CostPerUnit, 1e-9)

		require.Len(t, fx.repo.movements, 1)
		m := fx.repo.movements[0]
		require.Equal(t, MovementExpiry, m.Type)
		require.Equal(t, int64(-40), m.QuantityChange)
		require.Equal(t, int64(100), m.QuantityBefore)
		require.Equal(t, int64(60), m.QuantityAfter)
		require.Equal(t, "expiry-sweep", m.PerformedBy)

		require.Equal(t, 1, fx.cache.bumps)
		require.Len(t, fx.audit.events, 1)
		require.Equal(t, "batches", fx.audit.events[0].TableName)
	})

	t.Run("a batch expiring on the sweep date is written off", func(t *testing.T) {
		fx := newServiceFixture(t)
		agg := fx.seedAggregate(t, 0, 0)

		today := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
		_, err := fx.repo.InsertBatch(ctx, Batch{
			InventoryID: agg.ID, BatchNumber: "DAY-001", Quantity: 25, CostPerUnit: 8,
			ExpirationDate: &today, Status: BatchActive, IsActive: true,
		})
		require.NoError(t, err)
		stored := fx.repo.aggregates[agg.ID]
		stored.Quantity = 25
		stored.AvailableQuantity = 25
		fx.repo.aggregates[agg.ID] = stored

		result, err := fx.svc.SweepExpiredBatches(ctx, time.Time{})
		require.NoError(t, err)
		require.Equal(t, 1, result.ExpiredBatches)
		require.Equal(t, int64(25), result.QuantityWrittenOff)
		require.Zero(t, fx.repo.aggregates[agg.ID].Quantity)
	})

	t.Run("nothing expired leaves state untouched", func(t *testing.T) {
		fx := newServiceFixture(t)
		fx.seedAggregate(t, 50, 10)

		result, err := fx.svc.SweepExpiredBatches(ctx, time.Time{})
		require.NoError(t, err)
		require.Zero(t, result.ExpiredBatches)
		require.Empty(t, fx.repo.movements)
		require.Zero(t, fx.cache.bumps)
	})
}

func TestServiceListMovements(t *testing.T) {
	fx := newServiceFixture(t)
	_, err := fx.svc.ListMovements(context.Background(), MovementFilter{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "inventoryId", verr.Field)
}

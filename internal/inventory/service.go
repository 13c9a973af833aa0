package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ProductRef is the slice of product master data the ledger needs.
type ProductRef struct {
	ID        int64
	Code      string
	Name      string
	Available bool
}

// ProductPort resolves product references. Implementations return
// ErrProductNotFound for unknown ids.
type ProductPort interface {
	Lookup(ctx context.Context, productID int64) (ProductRef, error)
}

// AuditEvent describes one mutation for the external audit trail. OldData and
// NewData must carry enough structure for the consumer to render a field-level
// diff.
type AuditEvent struct {
	Action      string
	TableName   string
	RecordID    string
	OldData     map[string]any
	NewData     map[string]any
	PerformedBy string
	At          time.Time
}

// AuditPort abstracts audit trail emission.
type AuditPort interface {
	Record(ctx context.Context, event AuditEvent) error
}

// CachePort invalidates derived read models after ledger writes.
type CachePort interface {
	Bump(ctx context.Context) error
}

// Service coordinates the inventory ledger: restocks, the movement ledger and
// the expiry sweep.
type Service struct {
	repo         RepositoryPort
	products     ProductPort
	audit        AuditPort
	cache        CachePort
	logger       *slog.Logger
	validate     *validator.Validate
	loc          *time.Location
	mainBranchID int64
	now          func() time.Time
}

// ServiceConfig groups the start-time settings of the ledger. MainBranchID is
// resolved from configuration once during wiring and injected here; the
// service never looks it up lazily.
type ServiceConfig struct {
	Location     *time.Location
	MainBranchID int64
}

// Default thresholds for lazily created aggregates.
const (
	defaultLowStockThreshold = 10
	defaultMinStockLevel     = 5
)

// maxRestockTxAttempts bounds the retry after losing a first-restock race.
const maxRestockTxAttempts = 2

// NewService builds Service. audit and cache may be nil; their effects are
// then skipped.
func NewService(repo RepositoryPort, products ProductPort, audit AuditPort, cache CachePort, logger *slog.Logger, cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:         repo,
		products:     products,
		audit:        audit,
		cache:        cache,
		logger:       logger,
		validate:     validator.New(),
		loc:          loc,
		mainBranchID: cfg.MainBranchID,
		now:          time.Now,
	}
}

// Restock records one received lot: it creates the batch, recomputes the
// weighted-average cost over all active batches, and updates the aggregate —
// all in one transaction. The movement entry, restock history, audit event and
// cache invalidation are best-effort secondary effects: when one fails the
// stock update stays committed and the failure is reported in the result. This
// asymmetry deliberately favours stock accuracy over bookkeeping completeness.
func (s *Service) Restock(ctx context.Context, req RestockRequest) (RestockResult, error) {
	req = s.applyDefaults(req)
	if err := s.validateRequest(req); err != nil {
		return RestockResult{}, err
	}

	product, err := s.products.Lookup(ctx, req.ProductID)
	if err != nil {
		return RestockResult{}, err
	}
	if !product.Available {
		return RestockResult{}, ErrProductNotFound
	}

	var (
		result  RestockResult
		before  Aggregate
		after   Aggregate
		created bool
	)
	txFn := func(ctx context.Context, tx TxRepository) error {
		agg, fresh, err := s.resolveAggregate(ctx, tx, req)
		if err != nil {
			return err
		}
		before = agg
		created = fresh

		number, err := s.resolveBatchNumber(ctx, tx, req.BatchNumber, product.Code)
		if err != nil {
			return err
		}

		// Listed before the insert so the formula sees "existing batches plus
		// the new lot" exactly once.
		actives, err := tx.ListActiveBatches(ctx, agg.ID)
		if err != nil {
			return err
		}
		newAvg, err := ComputeWeightedAverageCost(actives, req.Quantity, req.CostPerUnit)
		if err != nil {
			return err
		}

		batchID, err := tx.InsertBatch(ctx, Batch{
			InventoryID:      agg.ID,
			BatchNumber:      number,
			Quantity:         req.Quantity,
			CostPerUnit:      req.CostPerUnit,
			ReceivedDate:     req.ReceivedDate,
			ExpirationDate:   req.ExpirationDate,
			SupplierName:     req.SupplierName,
			SupplierContact:  req.SupplierContact,
			SupplierEmail:    req.SupplierEmail,
			PurchaseOrderRef: req.PurchaseOrderRef,
			Status:           BatchActive,
			IsActive:         true,
		})
		if err != nil {
			return err
		}

		agg.Quantity += req.Quantity
		agg.AvailableQuantity = agg.Quantity - agg.ReservedQuantity
		agg.CostPerUnit = newAvg
		agg.LastRestockDate = req.ReceivedDate
		if err := tx.UpdateAggregateStock(ctx, agg); err != nil {
			return err
		}
		after = agg

		result = RestockResult{
			BatchID:          batchID,
			BatchNumber:      number,
			InventoryID:      agg.ID,
			PreviousQuantity: before.Quantity,
			NewQuantity:      agg.Quantity,
			QuantityAdded:    req.Quantity,
			NewAverageCost:   newAvg,
			TotalCost:        roundCost(float64(req.Quantity) * req.CostPerUnit),
		}
		return nil
	}

	for attempt := 1; ; attempt++ {
		err = s.repo.WithTx(ctx, txFn)
		if errors.Is(err, ErrAggregateExists) && attempt < maxRestockTxAttempts {
			// Another first restock for this (product, branch) committed between
			// our locked read and insert. A fresh transaction sees its row.
			continue
		}
		break
	}
	if err != nil {
		return RestockResult{}, err
	}

	result.Secondary = s.runSecondaryEffects(ctx, req, result, before, after, created)
	return result, nil
}

func (s *Service) applyDefaults(req RestockRequest) RestockRequest {
	if req.BranchID == 0 {
		req.BranchID = s.mainBranchID
	}
	if req.ReceivedDate.IsZero() {
		req.ReceivedDate = dateOnly(s.now().In(s.loc))
	} else {
		req.ReceivedDate = dateOnly(req.ReceivedDate.In(s.loc))
	}
	if req.ExpirationDate != nil {
		d := dateOnly(req.ExpirationDate.In(s.loc))
		req.ExpirationDate = &d
	}
	req.BatchNumber = strings.TrimSpace(req.BatchNumber)
	req.SupplierName = strings.TrimSpace(req.SupplierName)
	return req
}

func (s *Service) validateRequest(req RestockRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fieldName(fe.Field()), Message: validationMessage(fe)}
		}
		return &ValidationError{Field: "request", Message: err.Error()}
	}

	today := dateOnly(s.now().In(s.loc))
	if req.ReceivedDate.After(today) {
		return &ValidationError{Field: "receivedDate", Message: "received date must not be in the future"}
	}
	if req.ExpirationDate != nil && !req.ExpirationDate.After(req.ReceivedDate) {
		return &ValidationError{Field: "expirationDate", Message: "expiration date must be after received date"}
	}
	return nil
}

func (s *Service) resolveAggregate(ctx context.Context, tx TxRepository, req RestockRequest) (Aggregate, bool, error) {
	if req.InventoryID != 0 {
		agg, err := tx.GetAggregateByIDForUpdate(ctx, req.InventoryID)
		if err != nil {
			return Aggregate{}, false, err
		}
		if agg.ProductID != req.ProductID {
			return Aggregate{}, false, &ValidationError{Field: "inventoryId", Message: "inventory row does not belong to this product"}
		}
		return agg, false, nil
	}

	agg, err := tx.GetAggregateForUpdate(ctx, req.ProductID, req.BranchID)
	if err == nil {
		return agg, false, nil
	}
	if !errors.Is(err, ErrAggregateNotFound) {
		return Aggregate{}, false, err
	}

	// First restock for this (product, branch): create the row at zero with
	// default thresholds.
	fresh := Aggregate{
		ProductID:         req.ProductID,
		BranchID:          req.BranchID,
		LowStockThreshold: defaultLowStockThreshold,
		MinStockLevel:     defaultMinStockLevel,
	}
	id, err := tx.CreateAggregate(ctx, fresh)
	if err != nil {
		return Aggregate{}, false, err
	}
	fresh.ID = id
	return fresh, true, nil
}

// resolveBatchNumber returns the caller-supplied number after a uniqueness
// check (no retry), or generates candidates with a bounded retry loop.
func (s *Service) resolveBatchNumber(ctx context.Context, tx TxRepository, supplied, productCode string) (string, error) {
	if supplied != "" {
		taken, err := tx.BatchNumberExists(ctx, supplied)
		if err != nil {
			return "", err
		}
		if taken {
			return "", ErrDuplicateBatchNumber
		}
		return supplied, nil
	}

	seed := BatchNumberSeed{ProductCode: productCode, Now: s.now()}
	for attempt := 1; attempt <= maxBatchNumberAttempts; attempt++ {
		candidate := GenerateBatchNumber(seed, attempt)
		taken, err := tx.BatchNumberExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrBatchNumberExhausted
}

type secondaryEffect struct {
	name string
	run  func(context.Context) error
}

func (s *Service) runSecondaryEffects(ctx context.Context, req RestockRequest, result RestockResult, before, after Aggregate, created bool) []SecondaryFailure {
	effects := []secondaryEffect{
		{name: "movement", run: func(ctx context.Context) error {
			_, err := s.repo.InsertMovement(ctx, Movement{
				InventoryID:    result.InventoryID,
				Type:           MovementRestock,
				QuantityChange: req.Quantity,
				QuantityBefore: result.PreviousQuantity,
				QuantityAfter:  result.NewQuantity,
				ReferenceID:    result.BatchID,
				ReferenceType:  "batch",
				Notes:          req.Notes,
				PerformedBy:    req.PerformedBy,
			})
			return err
		}},
		{name: "restock_history", run: func(ctx context.Context) error {
			// Branch and product come from the resolved aggregate, not the
			// request: a restock addressed by inventoryId may omit branchId.
			_, err := s.repo.InsertRestockHistory(ctx, RestockHistory{
				InventoryID:      result.InventoryID,
				BatchID:          result.BatchID,
				ProductID:        after.ProductID,
				BranchID:         after.BranchID,
				Quantity:         req.Quantity,
				CostPerUnit:      req.CostPerUnit,
				SupplierName:     req.SupplierName,
				PurchaseOrderRef: req.PurchaseOrderRef,
				ReceivedDate:     req.ReceivedDate,
				PerformedBy:      req.PerformedBy,
			})
			return err
		}},
	}
	if s.audit != nil {
		action := "update"
		var oldData map[string]any
		if created {
			action = "create"
		} else {
			oldData = aggregateData(before)
		}
		effects = append(effects, secondaryEffect{name: "audit", run: func(ctx context.Context) error {
			return s.audit.Record(ctx, AuditEvent{
				Action:      action,
				TableName:   "inventory_aggregates",
				RecordID:    strconv.FormatInt(result.InventoryID, 10),
				OldData:     oldData,
				NewData:     aggregateData(after),
				PerformedBy: req.PerformedBy,
				At:          s.now(),
			})
		}})
	}
	if s.cache != nil {
		effects = append(effects, secondaryEffect{name: "cache_invalidation", run: s.cache.Bump})
	}

	var failures []SecondaryFailure
	for _, effect := range effects {
		if err := effect.run(ctx); err != nil {
			s.logger.Error("secondary restock effect failed",
				slog.String("effect", effect.name),
				slog.Int64("inventory_id", result.InventoryID),
				slog.Int64("batch_id", result.BatchID),
				slog.Any("error", err))
			failures = append(failures, SecondaryFailure{Effect: effect.name, Message: err.Error()})
		}
	}
	return failures
}

// SweepExpiredBatches deactivates batches on or past their expiration date,
// reconciles each affected aggregate against its surviving active batches and
// appends an expiry movement per batch.
func (s *Service) SweepExpiredBatches(ctx context.Context, asOf time.Time) (SweepResult, error) {
	if asOf.IsZero() {
		asOf = dateOnly(s.now().In(s.loc))
	}

	expired, err := s.repo.ListExpiredActiveBatches(ctx, asOf)
	if err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	for _, batch := range expired {
		var before, after Aggregate
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			agg, err := tx.GetAggregateByIDForUpdate(ctx, batch.InventoryID)
			if err != nil {
				return err
			}
			before = agg

			if err := tx.MarkBatchExpired(ctx, batch.ID); err != nil {
				return err
			}
			actives, err := tx.ListActiveBatches(ctx, agg.ID)
			if err != nil {
				return err
			}

			var qty int64
			for _, b := range actives {
				qty += b.Quantity
			}
			avg, err := ComputeWeightedAverageCost(actives, 0, 0)
			if err != nil {
				return err
			}

			agg.Quantity = qty
			agg.AvailableQuantity = agg.Quantity - agg.ReservedQuantity
			if agg.AvailableQuantity < 0 {
				agg.AvailableQuantity = 0
			}
			agg.CostPerUnit = avg
			if err := tx.UpdateAggregateStock(ctx, agg); err != nil {
				return err
			}
			after = agg
			return nil
		})
		if err != nil {
			s.logger.Error("expiry sweep batch failed",
				slog.Int64("batch_id", batch.ID),
				slog.Any("error", err))
			continue
		}

		result.ExpiredBatches++
		result.QuantityWrittenOff += batch.Quantity

		if _, err := s.repo.InsertMovement(ctx, Movement{
			InventoryID:    batch.InventoryID,
			Type:           MovementExpiry,
			QuantityChange: -batch.Quantity,
			QuantityBefore: before.Quantity,
			QuantityAfter:  after.Quantity,
			ReferenceID:    batch.ID,
			ReferenceType:  "batch",
			Notes:          fmt.Sprintf("batch %s expired", batch.BatchNumber),
			PerformedBy:    "expiry-sweep",
		}); err != nil {
			s.logger.Error("expiry movement append failed", slog.Int64("batch_id", batch.ID), slog.Any("error", err))
			result.Secondary = append(result.Secondary, SecondaryFailure{Effect: "movement", Message: err.Error()})
		}
		if s.audit != nil {
			if err := s.audit.Record(ctx, AuditEvent{
				Action:      "update",
				TableName:   "batches",
				RecordID:    strconv.FormatInt(batch.ID, 10),
				OldData:     map[string]any{"status": string(BatchActive), "isActive": true},
				NewData:     map[string]any{"status": string(BatchExpired), "isActive": false},
				PerformedBy: "expiry-sweep",
				At:          s.now(),
			}); err != nil {
				result.Secondary = append(result.Secondary, SecondaryFailure{Effect: "audit", Message: err.Error()})
			}
		}
	}

	if result.ExpiredBatches > 0 && s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			result.Secondary = append(result.Secondary, SecondaryFailure{Effect: "cache_invalidation", Message: err.Error()})
		}
	}
	return result, nil
}

// ListMovements returns ledger entries for one inventory line.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.InventoryID == 0 {
		return nil, &ValidationError{Field: "inventoryId", Message: "inventory id required"}
	}
	return s.repo.ListMovements(ctx, filter)
}

// ListAggregates returns stock summary rows.
func (s *Service) ListAggregates(ctx context.Context, filter AggregateFilter) ([]Aggregate, error) {
	return s.repo.ListAggregates(ctx, filter)
}

// GetAggregate returns one stock summary row.
func (s *Service) GetAggregate(ctx context.Context, id int64) (Aggregate, error) {
	return s.repo.GetAggregate(ctx, id)
}

func aggregateData(agg Aggregate) map[string]any {
	return map[string]any{
		"quantity":          agg.Quantity,
		"availableQuantity": agg.AvailableQuantity,
		"reservedQuantity":  agg.ReservedQuantity,
		"costPerUnit":       agg.CostPerUnit,
		"lastRestockDate":   agg.LastRestockDate.Format("2006-01-02"),
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func fieldName(structField string) string {
	if structField == "" {
		return structField
	}
	return strings.ToLower(structField[:1]) + structField[1:]
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "email":
		return "must be a valid email address"
	default:
		return "is invalid"
	}
}

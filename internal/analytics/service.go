package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"
)

// Horizon boundaries in days. A lot expiring in exactly seven days belongs to
// the seven-day bucket.
const (
	horizonCritical = 7
	horizonMid      = 14
	horizonFar      = 30

	maxCriticalBatches = 20
)

// RepositoryPort exposes the ledger reads the read-models need.
type RepositoryPort interface {
	Aggregates(ctx context.Context, f Filters) ([]AggregateRow, error)
	ExpiringBatches(ctx context.Context, f Filters) ([]BatchRow, error)
}

// Service derives read-models from ledger state. Results are cached and
// concurrent identical loads are collapsed to one.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
	loc   *time.Location
	now   func() time.Time
}

// NewService wires a RepositoryPort with a Cache helper.
func NewService(repo RepositoryPort, cache *Cache, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, cache: cache, loc: loc, now: time.Now}
}

// InventoryMetrics summarises stock levels in scope.
func (s *Service) InventoryMetrics(ctx context.Context, f Filters) (InventoryMetrics, error) {
	var metrics InventoryMetrics
	err := s.fetch(ctx, keyInventoryMetrics(f), &metrics, func(ctx context.Context) (any, error) {
		aggregates, err := s.repo.Aggregates(ctx, f)
		if err != nil {
			return nil, err
		}
		return buildInventoryMetrics(aggregates), nil
	})
	return metrics, err
}

// ExpirationMetrics buckets active lots by days until expiry as of today in
// the operating timezone.
func (s *Service) ExpirationMetrics(ctx context.Context, f Filters) (ExpirationMetrics, error) {
	asOf := dateOnly(s.now().In(s.loc))
	var metrics ExpirationMetrics
	err := s.fetch(ctx, keyExpirationMetrics(f, asOf), &metrics, func(ctx context.Context) (any, error) {
		batches, err := s.repo.ExpiringBatches(ctx, f)
		if err != nil {
			return nil, err
		}
		return buildExpirationMetrics(batches, asOf), nil
	})
	return metrics, err
}

// Valuation reports per-line stock value.
func (s *Service) Valuation(ctx context.Context, f Filters) (Valuation, error) {
	var valuation Valuation
	err := s.fetch(ctx, keyValuation(f), &valuation, func(ctx context.Context) (any, error) {
		aggregates, err := s.repo.Aggregates(ctx, f)
		if err != nil {
			return nil, err
		}
		return buildValuation(aggregates), nil
	})
	return valuation, err
}

// fetch serves dest from cache, collapsing concurrent identical loads into
// one repository round trip.
func (s *Service) fetch(ctx context.Context, keyParts []string, dest any, loader func(context.Context) (any, error)) error {
	key, err := s.cache.BuildKey(ctx, keyParts...)
	if err != nil {
		return err
	}
	resultChan := s.group.DoChan(key, func() (any, error) {
		err := s.cache.FetchJSON(ctx, key, dest, loader)
		return nil, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return res.Err
		}
		if res.Shared {
			// Another caller populated the cache; read it for our dest.
			return s.cache.FetchJSON(ctx, key, dest, loader)
		}
		return nil
	}
}

// ClassifyStock returns the stock status of one line. Out-of-stock wins over
// low; overstock requires a configured max level.
func ClassifyStock(a AggregateRow) StockStatus {
	switch {
	case a.Quantity == 0:
		return StockOutOfStock
	case a.Quantity < a.LowStockThreshold:
		return StockLow
	case a.MaxStockLevel > 0 && a.Quantity > a.MaxStockLevel:
		return StockOverstocked
	default:
		return StockAdequate
	}
}

// DaysUntilExpiry counts whole days from asOf to the expiration date,
// rounding partial days up. Zero or negative means already expired.
func DaysUntilExpiry(expiration, asOf time.Time) int {
	return int(math.Ceil(expiration.Sub(asOf).Hours() / 24))
}

func buildInventoryMetrics(aggregates []AggregateRow) InventoryMetrics {
	metrics := InventoryMetrics{TotalItems: len(aggregates)}
	for _, a := range aggregates {
		metrics.TotalQuantity += a.Quantity
		metrics.TotalValue += float64(a.Quantity) * a.CostPerUnit
		switch ClassifyStock(a) {
		case StockOutOfStock:
			metrics.OutOfStockCount++
		case StockLow:
			metrics.LowStockCount++
		case StockOverstocked:
			metrics.OverstockedCount++
		}
	}
	metrics.TotalValue = round2(metrics.TotalValue)
	return metrics
}

func buildExpirationMetrics(batches []BatchRow, asOf time.Time) ExpirationMetrics {
	var metrics ExpirationMetrics
	for _, b := range batches {
		days := DaysUntilExpiry(b.ExpirationDate, asOf)
		switch {
		case days <= 0:
			metrics.Expired++
		case days <= horizonCritical:
			metrics.Within7Days++
		case days <= horizonMid:
			metrics.Within14Days++
		case days <= horizonFar:
			metrics.Within30Days++
		}
		if days <= horizonCritical {
			metrics.CriticalBatches = append(metrics.CriticalBatches, ExpiringBatch{
				BatchID:        b.BatchID,
				BatchNumber:    b.BatchNumber,
				InventoryID:    b.InventoryID,
				ProductID:      b.ProductID,
				BranchID:       b.BranchID,
				Quantity:       b.Quantity,
				CostPerUnit:    b.CostPerUnit,
				ExpirationDate: b.ExpirationDate,
				DaysUntil:      days,
			})
		}
	}
	sort.Slice(metrics.CriticalBatches, func(i, j int) bool {
		return metrics.CriticalBatches[i].DaysUntil < metrics.CriticalBatches[j].DaysUntil
	})
	if len(metrics.CriticalBatches) > maxCriticalBatches {
		metrics.CriticalBatches = metrics.CriticalBatches[:maxCriticalBatches]
	}
	return metrics
}

func buildValuation(aggregates []AggregateRow) Valuation {
	valuation := Valuation{Rows: make([]ValuationRow, 0, len(aggregates))}
	for _, a := range aggregates {
		value := round2(float64(a.Quantity) * a.CostPerUnit)
		valuation.Rows = append(valuation.Rows, ValuationRow{
			InventoryID: a.InventoryID,
			ProductID:   a.ProductID,
			BranchID:    a.BranchID,
			Quantity:    a.Quantity,
			CostPerUnit: a.CostPerUnit,
			Value:       value,
			Status:      ClassifyStock(a),
		})
		valuation.TotalValue += value
	}
	valuation.TotalValue = round2(valuation.TotalValue)
	return valuation
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

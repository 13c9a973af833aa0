package inventory

import "math"

// costScale keeps four fractional digits on unit costs.
const costScale = 10000

// ComputeWeightedAverageCost returns the quantity-weighted mean unit cost of
// the given active batches plus one incoming lot. It is recomputed from the
// full batch set on every receipt instead of incrementally from the last
// average, so rounding never accumulates across restocks. With an empty batch
// set and zero incoming quantity the incoming cost is returned unchanged.
//
// The function is pure: it never mutates its inputs and has no hidden state.
func ComputeWeightedAverageCost(activeBatches []Batch, newQuantity int64, newCost float64) (float64, error) {
	if newQuantity < 0 || newCost < 0 {
		return 0, ErrNegativeCostingInput
	}

	totalQty := newQuantity
	totalCost := float64(newQuantity) * newCost
	for _, b := range activeBatches {
		if b.Quantity < 0 || b.CostPerUnit < 0 {
			return 0, ErrNegativeCostingInput
		}
		totalQty += b.Quantity
		totalCost += float64(b.Quantity) * b.CostPerUnit
	}

	if totalQty == 0 {
		return roundCost(newCost), nil
	}
	return roundCost(totalCost / float64(totalQty)), nil
}

func roundCost(v float64) float64 {
	return math.Round(v*costScale) / costScale
}

package inventory

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// maxBatchNumberAttempts bounds candidate regeneration on collisions.
const maxBatchNumberAttempts = 5

// BatchNumberSeed fixes the inputs of candidate generation so the generator
// stays a pure function. The retry loop lives in the caller.
type BatchNumberSeed struct {
	ProductCode string
	Now         time.Time
}

// GenerateBatchNumber derives a candidate batch number from the product code,
// year and timestamp, with a suffix that varies per attempt. The same seed and
// attempt always produce the same candidate.
func GenerateBatchNumber(seed BatchNumberSeed, attempt int) string {
	code := strings.ToUpper(strings.TrimSpace(seed.ProductCode))
	if code == "" {
		code = "GEN"
	}

	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%d|%d", code, seed.Now.UnixNano(), attempt)
	suffix := h.Sum32() % 1000

	return fmt.Sprintf("B%s-%d-%06d-%03d",
		code,
		seed.Now.Year(),
		seed.Now.UnixNano()/1000%1000000,
		suffix,
	)
}

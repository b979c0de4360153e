// Package reuse computes reuse factors for time-multiplexed multiplier
// arrays.
//
// A reuse factor R means each physical multiplier is used R times per
// layer invocation. Only divisors of the total multiplication count give a
// regular schedule without padding.
package reuse

import (
	"fmt"
	"math"
	"slices"

	"github.com/cockroachdb/errors"
)

// ShuffleCycles is the fixed cycle overhead per kernel multiply when
// estimating a reuse factor from a cycle budget.
const ShuffleCycles = 6

// InvalidShapeError is returned for non-positive multiply shapes.
type InvalidShapeError struct {
	NIn, NOut int
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("invalid multiply shape (%d, %d): both sizes must be positive", e.NIn, e.NOut)
}

// IsInvalidShapeError reports whether err is an InvalidShapeError.
func IsInvalidShapeError(err error) bool {
	var se *InvalidShapeError
	return errors.As(err, &se)
}

// Divisors returns the positive divisors of n in ascending order.
func Divisors(n int) []int {
	if n <= 0 {
		return nil
	}
	var small, large []int
	for i := 1; i*i <= n; i++ {
		if n%i != 0 {
			continue
		}
		small = append(small, i)
		if j := n / i; j != i {
			large = append(large, j)
		}
	}
	slices.Reverse(large)
	return append(small, large...)
}

// Closest returns the divisor of nIn*nOut closest to requested. Ties go to
// the larger divisor.
func Closest(nIn, nOut, requested int) (int, error) {
	return ClosestTo(nIn, nOut, float64(requested))
}

// ClosestTo is Closest for a fractional request, as produced by Target.
func ClosestTo(nIn, nOut int, requested float64) (int, error) {
	if nIn <= 0 || nOut <= 0 {
		return 0, &InvalidShapeError{NIn: nIn, NOut: nOut}
	}
	best := 0
	bestDist := math.Inf(1)
	for _, d := range Divisors(nIn * nOut) {
		dist := math.Abs(float64(d) - requested)
		// Divisors ascend, so <= moves ties to the larger one.
		if dist <= bestDist {
			best, bestDist = d, dist
		}
	}
	return best, nil
}

// Target estimates a reuse factor from a cycle budget. kernelMultiplies
// is the number of kernel evaluations per layer invocation. The estimate
// stays fractional; ClosestTo snaps it to a divisor. ok is false when the
// budget is too small to change anything.
func Target(targetCycles, kernelMultiplies int) (rf float64, ok bool) {
	if kernelMultiplies <= 0 {
		return 0, false
	}
	overhead := ShuffleCycles * kernelMultiplies
	if targetCycles <= overhead {
		return 0, false
	}
	return float64(targetCycles-overhead) / float64(kernelMultiplies), true
}

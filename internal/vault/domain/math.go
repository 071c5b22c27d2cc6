package domain

import (
	"math"
	"math/bits"
	"time"

	apperrors "github.com/louisbranch/custody.space/internal/errors"
)

// ErrOverflow indicates 64-bit amount arithmetic that would wrap.
var ErrOverflow = apperrors.New(apperrors.CodeArithmeticOverflow, "amount arithmetic overflowed")
// addAmount adds two non-negative amounts, rejecting overflow.
func addAmount(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrOverflow
	}
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// mulAmount multiplies two non-negative amounts, rejecting overflow.
func mulAmount(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrOverflow
	}
	if a == 0 || b == 0 {
		return 0, nil
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(lo), nil
}

// mulDiv computes a*b/c with a 128-bit intermediate, rejecting results that
// do not fit in an int64. All inputs must be non-negative and c positive.
func mulDiv(a, b, c int64) (int64, error) {
	if a < 0 || b < 0 || c <= 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, uint64(c))
	if quo > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(quo), nil
}

// prorate computes the linear fee accrued over elapsed time:
// elapsed * feeAmount / feePeriod, with partial periods allowed.
func prorate(elapsed time.Duration, feeAmount int64, feePeriod time.Duration) (int64, error) {
	if elapsed < 0 {
		return 0, ErrOverflow
	}
	return mulDiv(int64(elapsed), feeAmount, int64(feePeriod))
}

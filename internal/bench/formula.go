package bench

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/fxnlabs/perf-amx/internal/matrix"
)

var (
	ErrInvalidDimensions  = errors.New("dimensions must be positive")
	ErrInsufficientMemory = errors.New("insufficient memory")
	ErrKernel             = errors.New("kernel failed")
)

// Dims formats a configuration as "N1/N2/M".
func Dims(n1, n2, m int) string {
	return fmt.Sprintf("%d/%d/%d", n1, n2, m)
}

func validate(n1, n2, m int) error {
	if n1 <= 0 || n2 <= 0 || m <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDimensions, Dims(n1, n2, m))
	}
	return nil
}

// DataSizeMiB is the combined operand footprint (N1·M + N2·M elements).
func DataSizeMiB(n1, n2, m int) float64 {
	elems := float64(n1)*float64(m) + float64(n2)*float64(m)
	return elems * matrix.ElementSize / (1 << 20)
}

// TotalFLOP is N1·N2·(2M−1): M multiplies and M−1 adds per output element.
func TotalFLOP(n1, n2, m int) (uint64, error) {
	if err := validate(n1, n2, m); err != nil {
		return 0, err
	}
	hi, outputs := bits.Mul64(uint64(n1), uint64(n2))
	if hi != 0 {
		return 0, fmt.Errorf("%w: FLOP count of %s overflows", ErrInvalidDimensions, Dims(n1, n2, m))
	}
	hi, flop := bits.Mul64(outputs, 2*uint64(m)-1)
	if hi != 0 {
		return 0, fmt.Errorf("%w: FLOP count of %s overflows", ErrInvalidDimensions, Dims(n1, n2, m))
	}
	return flop, nil
}

// GFLOPS divides FLOP by nanoseconds, which is numerically GFLOP/s. ok is
// false for a non-positive duration, in which case the result is NaN.
func GFLOPS(flop uint64, durationNs int64) (gflops float64, ok bool) {
	if durationNs <= 0 {
		return math.NaN(), false
	}
	return float64(flop) / float64(durationNs), true
}

// operandBytes returns the bytes of both operands, saturating on overflow.
func operandBytes(n1, n2, m int) uint64 {
	hi1, a := bits.Mul64(uint64(n1), uint64(m))
	hi2, b := bits.Mul64(uint64(n2), uint64(m))
	sum, carry := bits.Add64(a, b, 0)
	hi3, total := bits.Mul64(sum, matrix.ElementSize)
	if hi1 != 0 || hi2 != 0 || carry != 0 || hi3 != 0 {
		return math.MaxUint64
	}
	return total
}

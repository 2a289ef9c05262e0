package send

import (
	"fmt"
	"math"
	"strconv"
)

// ToBaseUnits converts a positive decimal amount string to the asset's
// smallest integer unit: round(amount × 10^decimals), rounded half-up on the
// floating-point product. This is the sole source of truth for on-chain
// amounts; the conversion is exact for amounts representable at the target
// decimal scale (e.g. "1.5" at 9 decimals is exactly 1_500_000_000).
func ToBaseUnits(amount string, decimals uint8) (uint64, error) {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("amount must be positive, got %q", amount)
	}

	product := f * math.Pow10(int(decimals))
	if product >= math.MaxUint64 {
		return 0, fmt.Errorf("amount %q overflows at %d decimals", amount, decimals)
	}

	// math.Round is half-away-from-zero; the product is positive here, so
	// this is exactly round-half-up.
	return uint64(math.Round(product)), nil
}

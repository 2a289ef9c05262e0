package send

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     uint64
	}{
		{"1", 9, 1_000_000_000},
		{"1.5", 9, 1_500_000_000},
		{"0.000000001", 9, 1},
		{"2.345678", 6, 2_345_678},
		{"100", 0, 100},
		{"0.1", 2, 10},
	}
	for _, tt := range tests {
		got, err := ToBaseUnits(tt.amount, tt.decimals)
		require.NoError(t, err, "amount %s at %d decimals", tt.amount, tt.decimals)
		assert.Equal(t, tt.want, got, "amount %s at %d decimals", tt.amount, tt.decimals)
	}
}

func TestToBaseUnits_RejectsNonPositive(t *testing.T) {
	for _, amount := range []string{"0", "-1", "abc", "", "NaN", "+Inf"} {
		_, err := ToBaseUnits(amount, 9)
		assert.Error(t, err, "amount %q", amount)
	}
}

func TestToBaseUnits_Overflow(t *testing.T) {
	_, err := ToBaseUnits("99999999999999999999", 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflows")
}

package pricemath

import (
	"testing"

	"github.com/lbpair/dlmm-engine/internal/fixedmath"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

// pow identity.
func TestPowQ64Identity(t *testing.T) {
	one := uint128.New(0, 1)

	got, err := PowQ64(one, 1)
	require.NoError(t, err)
	require.Equal(t, one, got)

	got, err = PowQ64(one, 0)
	require.NoError(t, err)
	require.Equal(t, one, got)
}

// price at step 25, id 0.
func TestPriceFromIDZeroIsOne(t *testing.T) {
	price, err := PriceFromID(0, 25)
	require.NoError(t, err)
	require.Equal(t, One, price)
}

// price monotonicity, testable property.
func TestPriceFromIDMonotonic(t *testing.T) {
	ids := []int32{-100, -1, 0, 1, 100, 1000}
	var prev uint128.Uint128
	for i, id := range ids {
		price, err := PriceFromID(id, 25)
		require.NoError(t, err)
		if i > 0 {
			require.Equal(t, -1, prev.Cmp(price), "price(%d) must be < price(%d)", ids[i-1], id)
		}
		prev = price
	}
}

// inversion identity, testable property: price(-n)*price(n) ~= 2^64*2^64.
func TestPriceFromIDInversion(t *testing.T) {
	// The full-range id 443636 only has a Q64.64 price at bin_step 1; at
	// bin_step 25 the price overflows long before that id.
	cases := []struct {
		n       int32
		binStep uint16
	}{{1, 25}, {25, 25}, {443636, 1}}
	for _, c := range cases {
		pos, err := PriceFromID(c.n, c.binStep)
		require.NoError(t, err)
		neg, err := PriceFromID(-c.n, c.binStep)
		require.NoError(t, err)

		prod, err := fixedmath.MulShiftRight(pos, neg, 64)
		require.NoError(t, err)
		// within 1 ulp of 1<<64 at the Q64.64 level, on either side.
		var diff uint128.Uint128
		if prod.Cmp(One) >= 0 {
			diff = prod.Sub(One)
		} else {
			diff = One.Sub(prod)
		}
		require.LessOrEqual(t, diff.Cmp64(1), 0)
	}
}

func TestValidateBinIDRange(t *testing.T) {
	require.NoError(t, ValidateBinID(MinBinID))
	require.NoError(t, ValidateBinID(MaxBinID))
	require.Error(t, ValidateBinID(MinBinID-1))
	require.Error(t, ValidateBinID(MaxBinID+1))
}

func TestScoreRoundTrip(t *testing.T) {
	for _, id := range []int32{MinBinID, -1, 0, 1, MaxBinID} {
		require.Equal(t, id, IDFromScore(Score(id)))
	}
}

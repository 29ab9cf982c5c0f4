package variableparam

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		FilterPeriod:             30,
		DecayPeriod:              600,
		ReductionFactor:          5000,
		BaseFactor:               1,
		BinStep:                  25,
		VariableFeeControl:       40_000,
		MaxVolatilityAccumulator: 350_000,
		ProtocolFeeRate:          100_000_000,
	}
}

func TestNewSeedsIndexReference(t *testing.T) {
	p := New(testConfig(), 10, 1000)
	require.Equal(t, int32(10), p.IndexReference)
	require.Equal(t, int64(1000), p.LastUpdateTimestamp)
	require.Equal(t, uint32(0), p.VolatilityAccumulator)
}

func TestAdvanceVolatilityAccumulatesDistance(t *testing.T) {
	p := New(testConfig(), 0, 1000)
	p.AdvanceVolatility(2)
	require.Equal(t, uint32(2*int(BasisPointMax)), p.VolatilityAccumulator)
}

func TestAdvanceVolatilityCapsAtMax(t *testing.T) {
	cfg := testConfig()
	cfg.MaxVolatilityAccumulator = 5000
	p := New(cfg, 0, 1000)
	p.AdvanceVolatility(1000)
	require.Equal(t, cfg.MaxVolatilityAccumulator, p.VolatilityAccumulator)
}

func TestUpdateReferencesBelowFilterPeriodNoop(t *testing.T) {
	p := New(testConfig(), 0, 1000)
	p.AdvanceVolatility(5)
	before := p.VolatilityAccumulator

	p.UpdateReferences(1010, 5) // elapsed 10 < filter period 30
	require.Equal(t, int32(0), p.IndexReference)
	require.Equal(t, before, p.VolatilityAccumulator)
}

func TestUpdateReferencesWithinDecayPeriodAppliesReduction(t *testing.T) {
	p := New(testConfig(), 0, 1000)
	p.AdvanceVolatility(10)
	accBefore := p.VolatilityAccumulator

	p.UpdateReferences(1000+40, 7) // elapsed 40 >= filter(30), < decay(600)
	require.Equal(t, int32(7), p.IndexReference)
	want := uint32(uint64(accBefore) * uint64(p.Config.ReductionFactor) / uint64(BasisPointMax))
	require.Equal(t, want, p.VolatilityReference)
}

func TestUpdateReferencesPastDecayPeriodResetsReference(t *testing.T) {
	p := New(testConfig(), 0, 1000)
	p.AdvanceVolatility(10)

	p.UpdateReferences(1000+700, 3) // elapsed 700 >= decay period 600
	require.Equal(t, int32(3), p.IndexReference)
	require.Equal(t, uint32(0), p.VolatilityReference)
}

func TestVariableFeeRateZeroControlIsZero(t *testing.T) {
	cfg := testConfig()
	cfg.VariableFeeControl = 0
	p := New(cfg, 0, 1000)
	p.AdvanceVolatility(100)
	require.Equal(t, uint64(0), p.VariableFeeRate())
}

func TestVariableFeeRateScalesWithVolatility(t *testing.T) {
	p := New(testConfig(), 0, 1000)
	require.Equal(t, uint64(0), p.VariableFeeRate())

	p.AdvanceVolatility(10)
	require.Greater(t, p.VariableFeeRate(), uint64(0))
}

func TestTotalFeeRateCapsAtMax(t *testing.T) {
	cfg := testConfig()
	cfg.BaseFactor = 40000 // pushes base rate toward MaxFeeRate on its own
	p := New(cfg, 0, 1000)
	p.AdvanceVolatility(100000)

	total, err := p.TotalFeeRate()
	require.NoError(t, err)
	require.LessOrEqual(t, total, MaxFeeRate)
}

func TestBaseFeeRateFormula(t *testing.T) {
	p := New(testConfig(), 0, 1000)
	require.Equal(t, uint64(1)*uint64(25)*10, p.BaseFeeRate())
}

// Command dlmmsim drives the DLMM engine through a small deterministic
// scenario end to end: pool creation, a funded position, a swap that
// crosses a bin boundary, and reward settlement. It exercises the engine
// the way a demo main.go exercises its router, minus any network
// dependency — there is no RPC client here, only the in-process engine.
package main

import (
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/lbpair/dlmm-engine/pkg/pool"
	"github.com/lbpair/dlmm-engine/pkg/typetag"
)

func mustLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}

func main() {
	logger := mustLogger()
	defer logger.Sync()

	tokenA := typetag.FromBytes([]byte("DLMM-DEMO-TOKEN-A"))
	tokenB := typetag.FromBytes([]byte("DLMM-DEMO-TOKEN-B"))

	const now0 int64 = 1_757_332_800

	p, err := pool.CreatePool(pool.Config{
		BinStep:                  25,
		BaseFactor:               1,
		FilterPeriod:             30,
		DecayPeriod:              600,
		ReductionFactor:          5000,
		VariableFeeControl:       40000,
		MaxVolatilityAccumulator: 350000,
		ProtocolFeeRate:          100_000_000,
		PartnerFeeRate:           0,
	}, 0, tokenA, tokenB, now0)
	if err != nil {
		logger.Fatal("create pool", zap.Error(err))
	}
	p.SetLogger(logger.Named("engine"))
	logger.Info("pool created",
		zap.String("pool_id", typetag.TypeTag(p.ID).String()),
		zap.Int32("active_id", p.ActiveID),
	)

	pos, openCert, err := p.OpenPosition(-2, 5, true)
	if err != nil {
		logger.Fatal("open position", zap.Error(err))
	}
	if err := p.RepayOpen(openCert, 0, 0); err != nil {
		logger.Fatal("repay open", zap.Error(err))
	}

	binIDs := []int32{-2, -1, 0, 1, 2}
	amountsA := []uint64{0, 0, 1_000_000, 800_000, 500_000}
	amountsB := []uint64{500_000, 500_000, 500_000, 0, 0}
	addCert, err := p.AddLiquidity(pos, now0, binIDs, amountsA, amountsB)
	if err != nil {
		logger.Fatal("add liquidity", zap.Error(err))
	}
	if err := p.RepayAdd(addCert, addCert.TotalA, addCert.TotalB); err != nil {
		logger.Fatal("repay add", zap.Error(err))
	}
	logger.Info("liquidity added", zap.Uint64("total_a", addCert.TotalA), zap.Uint64("total_b", addCert.TotalB))

	if err := p.InitializeReward(0, tokenA, now0, false, false); err != nil {
		logger.Fatal("initialize reward", zap.Error(err))
	}
	rewardEnd := now0 + 604_800
	if err := p.AddReward(0, 604_800, nil, rewardEnd, now0); err != nil {
		logger.Fatal("add reward", zap.Error(err))
	}

	result, err := p.SwapExactIn(900_000, true, now0+5, nil)
	if err != nil {
		logger.Fatal("swap exact in", zap.Error(err))
	}
	logger.Info("swap complete",
		zap.Uint64("amount_in", result.AmountIn),
		zap.Uint64("amount_out", result.AmountOut),
		zap.Uint64("fee", result.Fee),
		zap.Uint64("protocol_fee", result.ProtocolFee),
		zap.Int32("active_id_after", p.ActiveID),
		zap.Int("steps", len(result.Steps)),
	)

	feeA, feeB, err := p.CollectFees(pos, now0+10)
	if err != nil {
		logger.Fatal("collect fees", zap.Error(err))
	}
	logger.Info("fees collected", zap.Uint64("fee_a", feeA), zap.Uint64("fee_b", feeB))

	protocolA, protocolB := p.CollectProtocolFees()
	logger.Info("protocol fees withdrawn", zap.Uint64("amount_a", protocolA), zap.Uint64("amount_b", protocolB))

	os.Exit(0)
}

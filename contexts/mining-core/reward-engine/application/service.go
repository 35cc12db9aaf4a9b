package application

import (
	"fmt"
	"log/slog"
	"math/big"

	domainerrors "solmine/contexts/mining-core/reward-engine/domain/errors"
	"solmine/contexts/mining-core/reward-engine/ports"
)

const (
	defaultMinPayoutLamports = 5_000

	lamportsPerSOL = 1_000_000_000
)

// Service computes proportional payouts from a miner snapshot and a pool
// balance snapshot. It never mutates session state and never rounds up:
// every division floors, so the sum of payouts can fall short of the balance
// but can never exceed it.
type Service struct {
	MinPayoutLamports uint64
	Logger            *slog.Logger
}

// ComputeRewards splits availableLamports across miners in proportion to
// their points. Miners with zero or negative points are skipped, amounts
// below the dust threshold are dropped, and if floor/threshold interactions
// ever push the committed total above the balance the amounts are scaled
// down and re-floored once. A total still above the balance after scaling is
// a computation fault and fails closed.
func (s Service) ComputeRewards(miners []ports.MinerPoints, availableLamports uint64) ([]ports.Reward, error) {
	eligible := make([]ports.MinerPoints, 0, len(miners))
	var totalPoints int64
	for _, miner := range miners {
		if miner.Points <= 0 {
			continue
		}
		eligible = append(eligible, miner)
		totalPoints += miner.Points
	}
	if totalPoints == 0 || availableLamports == 0 {
		return nil, nil
	}

	rewards := make([]ports.Reward, 0, len(eligible))
	for _, miner := range eligible {
		lamports := proportionalShare(miner.Points, totalPoints, availableLamports)
		if lamports < s.minPayout() {
			continue
		}
		rewards = append(rewards, ports.Reward{
			Wallet:       miner.Wallet,
			Points:       miner.Points,
			Lamports:     lamports,
			SOL:          float64(lamports) / lamportsPerSOL,
			SharePercent: float64(miner.Points) / float64(totalPoints) * 100,
		})
	}
	if len(rewards) == 0 {
		return nil, nil
	}

	committed := sumLamports(rewards)
	if committed > availableLamports {
		for i := range rewards {
			scaled := scaleDown(rewards[i].Lamports, availableLamports, committed)
			rewards[i].Lamports = scaled
			rewards[i].SOL = float64(scaled) / lamportsPerSOL
		}
		if rescaled := sumLamports(rewards); rescaled > availableLamports {
			return nil, fmt.Errorf("%w: committed %d lamports, available %d lamports",
				domainerrors.ErrOverCommitted, rescaled, availableLamports)
		}
	}

	resolveLogger(s.Logger).Debug("rewards computed",
		"event", "rewards_computed",
		"module", "mining-core/reward-engine",
		"layer", "application",
		"miner_count", len(rewards),
		"total_points", totalPoints,
		"committed_lamports", sumLamports(rewards),
		"available_lamports", availableLamports,
	)
	return rewards, nil
}

func (s Service) minPayout() uint64 {
	if s.MinPayoutLamports == 0 {
		return defaultMinPayoutLamports
	}
	return s.MinPayoutLamports
}

// proportionalShare is floor(points * available / totalPoints) computed in
// arbitrary precision so large pools cannot overflow int64 mid-product.
func proportionalShare(points int64, totalPoints int64, available uint64) uint64 {
	product := new(big.Int).Mul(big.NewInt(points), new(big.Int).SetUint64(available))
	product.Div(product, big.NewInt(totalPoints))
	return product.Uint64()
}

// scaleDown is floor(lamports * available / committed).
func scaleDown(lamports uint64, available uint64, committed uint64) uint64 {
	product := new(big.Int).Mul(new(big.Int).SetUint64(lamports), new(big.Int).SetUint64(available))
	product.Div(product, new(big.Int).SetUint64(committed))
	return product.Uint64()
}

func sumLamports(rewards []ports.Reward) uint64 {
	var total uint64
	for _, reward := range rewards {
		total += reward.Lamports
	}
	return total
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

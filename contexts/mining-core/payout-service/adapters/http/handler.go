package httpadapter

import (
	"context"
	"errors"
	"log/slog"

	"solmine/contexts/mining-core/payout-service/application"
	domainerrors "solmine/contexts/mining-core/payout-service/domain/errors"
	"solmine/contexts/mining-core/payout-service/ports"
	httptransport "solmine/contexts/mining-core/payout-service/transport/http"
	sessionapp "solmine/contexts/mining-core/session-service/application"
)

const lamportsPerSOL = 1_000_000_000

var statusMessages = map[ports.DistributionStatus]string{
	ports.StatusAlreadyDistributed: "Already distributed for this session",
	ports.StatusInProgress:         "Distribution in progress",
	ports.StatusSessionOpen:        "Session still open, nothing to distribute yet",
	ports.StatusNoMiners:           "No miners to reward",
	ports.StatusPoolEmpty:          "Insufficient reward pool",
	ports.StatusRewardsBelowDust:   "Rewards too small to distribute",
}

type Handler struct {
	Service *application.Service
	Logger  *slog.Logger
}

func (h Handler) DistributeHandler(ctx context.Context) (httptransport.DistributeResponse, error) {
	result, err := h.Service.Distribute(ctx)
	if err != nil {
		return httptransport.DistributeResponse{}, err
	}

	resp := httptransport.DistributeResponse{
		Status:              string(result.Status),
		SessionID:           result.SessionID,
		Message:             statusMessages[result.Status],
		TotalDistributed:    result.TotalDistributed,
		TotalDistributedSOL: float64(result.TotalDistributed) / lamportsPerSOL,
		TransferCount:       result.TransferCount,
		SuccessCount:        result.SuccessCount,
	}
	for _, transfer := range result.Results {
		resp.Results = append(resp.Results, httptransport.TransferResultDTO{
			Wallet:    sessionapp.MaskWallet(transfer.Wallet),
			Lamports:  transfer.Lamports,
			SOL:       float64(transfer.Lamports) / lamportsPerSOL,
			Signature: transfer.Signature,
			Error:     transfer.Error,
			Success:   transfer.Success,
		})
	}
	return resp, nil
}

// PoolHandler reports the pool balance snapshot. An unconfigured treasury is
// reported in-band with zero balances rather than as a request failure, so
// dashboards keep rendering.
func (h Handler) PoolHandler(ctx context.Context) (httptransport.PoolResponse, error) {
	snapshot, err := h.Service.PoolSnapshot(ctx)
	if errors.Is(err, domainerrors.ErrTreasuryNotConfigured) {
		return httptransport.PoolResponse{Error: "not configured"}, nil
	}
	if err != nil {
		return httptransport.PoolResponse{}, err
	}
	return httptransport.PoolResponse{
		Balance:       snapshot.BalanceLamports,
		BalanceSOL:    float64(snapshot.BalanceLamports) / lamportsPerSOL,
		AvailableSOL:  float64(snapshot.SpendableLamports) / lamportsPerSOL,
		WalletAddress: sessionapp.MaskWallet(snapshot.Address),
	}, nil
}

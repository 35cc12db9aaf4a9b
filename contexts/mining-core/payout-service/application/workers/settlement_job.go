package workers

import (
	"context"
	"log/slog"

	"solmine/contexts/mining-core/payout-service/application"
	"solmine/contexts/mining-core/payout-service/ports"
)

// SettlementJob is the worker-side distribution trigger. Each cycle attempts
// one distribution; the orchestrator's own guards make the call safe to
// repeat, so the job needs no scheduling state of its own.
type SettlementJob struct {
	Payouts *application.Service
	Logger  *slog.Logger
}

func (j SettlementJob) RunOnce(ctx context.Context) error {
	logger := j.logger()

	result, err := j.Payouts.Distribute(ctx)
	if err != nil {
		logger.Error("settlement cycle failed",
			"event", "settlement_cycle_failed",
			"module", "mining-core/payout-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	switch result.Status {
	case ports.StatusCompleted:
		logger.Info("settlement cycle distributed session",
			"event", "settlement_cycle_completed",
			"module", "mining-core/payout-service",
			"layer", "worker",
			"session_id", result.SessionID,
			"transfer_count", result.TransferCount,
			"total_distributed_lamports", result.TotalDistributed,
		)
	default:
		logger.Debug("settlement cycle idle",
			"event", "settlement_cycle_idle",
			"module", "mining-core/payout-service",
			"layer", "worker",
			"session_id", result.SessionID,
			"status", string(result.Status),
		)
	}
	return nil
}

func (j SettlementJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

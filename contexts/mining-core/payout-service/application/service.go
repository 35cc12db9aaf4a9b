package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainerrors "solmine/contexts/mining-core/payout-service/domain/errors"
	"solmine/contexts/mining-core/payout-service/ports"
	"solmine/contexts/mining-core/session-service/domain/entities"
	contractsv1 "solmine/contracts/gen/events/v1"
	"solmine/internal/shared/events"

	engineports "solmine/contexts/mining-core/reward-engine/ports"
)

const (
	defaultBaseReserveLamports    = 10_000_000 // 0.01 SOL held back for fees
	defaultPerTransferFeeLamports = 5_000

	sourceService = "mining-core/payout-service"
)

// Service coordinates one distribution run end to end: closed-session fetch,
// duplicate/concurrency guards, reward computation, sequential transfers,
// history recording and the distributed flag.
//
// The guards are process-local. A single instance is assumed; a crash between
// transfer execution and MarkDistributed can allow a re-trigger after
// restart. A durable lock keyed by session id would close that gap in a
// multi-instance deployment.
type Service struct {
	Sessions ports.SessionStore
	Engine   ports.RewardEngine
	Treasury ports.Treasury
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator

	BaseReserveLamports    uint64
	PerTransferFeeLamports uint64
	Logger                 *slog.Logger

	mu            sync.Mutex
	inProgress    bool
	lastSessionID string
}

// Distribute runs one payout attempt. Guard and no-op outcomes come back as
// statuses, not errors; only configuration faults, computation-safety faults
// and collaborator failures surface as errors.
func (s *Service) Distribute(ctx context.Context) (ports.DistributionResult, error) {
	logger := resolveLogger(s.Logger)

	view, err := s.Sessions.SessionForDistribution(ctx)
	if err != nil {
		return ports.DistributionResult{}, fmt.Errorf("load session for distribution: %w", err)
	}
	session := view.Session
	now := s.now()

	// The fallback case: no closed session is waiting, the store handed back
	// the live one. Nothing to settle yet; leave all guard state untouched.
	if !session.Closed(now) {
		return ports.DistributionResult{
			Status:    ports.StatusSessionOpen,
			SessionID: session.ID,
		}, nil
	}

	s.mu.Lock()
	if s.lastSessionID == session.ID {
		s.mu.Unlock()
		return ports.DistributionResult{
			Status:    ports.StatusAlreadyDistributed,
			SessionID: session.ID,
		}, nil
	}
	if s.inProgress {
		s.mu.Unlock()
		return ports.DistributionResult{
			Status:    ports.StatusInProgress,
			SessionID: session.ID,
		}, nil
	}
	s.inProgress = true
	s.mu.Unlock()

	// A session is attempted once. Whatever happens past this point, the
	// flag is released and the session id is recorded so the next trigger
	// reports already_distributed instead of re-running.
	defer func() {
		s.mu.Lock()
		s.inProgress = false
		s.lastSessionID = session.ID
		s.mu.Unlock()
	}()

	logger.Info("distribution triggered",
		"event", "distribution_triggered",
		"module", "mining-core/payout-service",
		"layer", "application",
		"session_id", session.ID,
		"miner_count", len(view.Miners),
	)

	miners := make([]engineports.MinerPoints, 0, len(view.Miners))
	for _, miner := range view.Miners {
		if miner.Points <= 0 {
			continue
		}
		miners = append(miners, engineports.MinerPoints{
			Wallet: miner.Wallet,
			Points: miner.Points,
		})
	}
	if len(miners) == 0 {
		return ports.DistributionResult{
			Status:    ports.StatusNoMiners,
			SessionID: session.ID,
		}, nil
	}

	if s.Treasury == nil {
		return ports.DistributionResult{}, domainerrors.ErrTreasuryNotConfigured
	}
	balance, err := s.Treasury.Balance(ctx)
	if err != nil {
		return ports.DistributionResult{}, fmt.Errorf("%w: %w", domainerrors.ErrBalanceUnavailable, err)
	}

	available := s.availableLamports(balance, len(miners))
	if available == 0 {
		return ports.DistributionResult{
			Status:    ports.StatusPoolEmpty,
			SessionID: session.ID,
		}, nil
	}

	rewards, err := s.Engine.ComputeRewards(miners, available)
	if err != nil {
		// Computation-safety fault: fail closed, no transfers attempted.
		return ports.DistributionResult{}, err
	}
	if len(rewards) == 0 {
		return ports.DistributionResult{
			Status:    ports.StatusRewardsBelowDust,
			SessionID: session.ID,
		}, nil
	}

	results := s.executeTransfers(ctx, session.ID, rewards)

	records := make([]entities.DistributionRecord, 0, len(results))
	var totalDistributed uint64
	successCount := 0
	for _, result := range results {
		records = append(records, entities.DistributionRecord{
			Wallet:    result.Wallet,
			Lamports:  result.Lamports,
			Signature: result.Signature,
			Error:     result.Error,
			Success:   result.Success,
		})
		if result.Success {
			totalDistributed += result.Lamports
			successCount++
		}
	}

	if err := s.Sessions.RecordDistribution(ctx, session.ID, records); err != nil {
		return ports.DistributionResult{}, fmt.Errorf("record distribution history: %w", err)
	}
	if err := s.Sessions.MarkDistributed(ctx, session.ID); err != nil {
		return ports.DistributionResult{}, fmt.Errorf("mark session distributed: %w", err)
	}
	if err := s.appendCompletedOutbox(ctx, session.ID, totalDistributed, len(results), successCount); err != nil {
		return ports.DistributionResult{}, err
	}

	logger.Info("distribution completed",
		"event", "distribution_completed",
		"module", "mining-core/payout-service",
		"layer", "application",
		"session_id", session.ID,
		"transfer_count", len(results),
		"success_count", successCount,
		"total_distributed_lamports", totalDistributed,
	)

	return ports.DistributionResult{
		Status:           ports.StatusCompleted,
		SessionID:        session.ID,
		TotalDistributed: totalDistributed,
		TransferCount:    len(results),
		SuccessCount:     successCount,
		Results:          results,
	}, nil
}

// PoolSnapshot reads the treasury balance and the spendable remainder after
// the base fee reserve.
func (s *Service) PoolSnapshot(ctx context.Context) (ports.PoolSnapshot, error) {
	if s.Treasury == nil {
		return ports.PoolSnapshot{}, domainerrors.ErrTreasuryNotConfigured
	}
	balance, err := s.Treasury.Balance(ctx)
	if err != nil {
		return ports.PoolSnapshot{}, fmt.Errorf("%w: %w", domainerrors.ErrBalanceUnavailable, err)
	}
	reserved := s.baseReserve()
	spendable := uint64(0)
	if balance > reserved {
		spendable = balance - reserved
	}
	return ports.PoolSnapshot{
		Address:           s.Treasury.Address(),
		BalanceLamports:   balance,
		ReservedLamports:  reserved,
		SpendableLamports: spendable,
	}, nil
}

// executeTransfers runs the payouts one at a time in reward order. A failed
// transfer is recorded and the loop moves on; it never aborts the run.
func (s *Service) executeTransfers(ctx context.Context, sessionID string, rewards []engineports.Reward) []ports.TransferResult {
	logger := resolveLogger(s.Logger)
	results := make([]ports.TransferResult, 0, len(rewards))
	for _, reward := range rewards {
		signature, err := s.Treasury.Transfer(ctx, reward.Wallet, reward.Lamports)
		if err != nil {
			logger.Warn("payout transfer failed",
				"event", "payout_transfer_failed",
				"module", "mining-core/payout-service",
				"layer", "application",
				"session_id", sessionID,
				"wallet", reward.Wallet,
				"lamports", reward.Lamports,
				"error", err.Error(),
			)
			results = append(results, ports.TransferResult{
				Wallet:   reward.Wallet,
				Lamports: reward.Lamports,
				Error:    err.Error(),
			})
			continue
		}
		results = append(results, ports.TransferResult{
			Wallet:    reward.Wallet,
			Lamports:  reward.Lamports,
			Signature: signature,
			Success:   true,
		})
	}
	return results
}

func (s *Service) appendCompletedOutbox(ctx context.Context, sessionID string, totalDistributed uint64, transferCount int, successCount int) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.newID(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(contractsv1.DistributionCompletedData{
		SessionID:                sessionID,
		TotalDistributedLamports: totalDistributed,
		TransferCount:            transferCount,
		SuccessCount:             successCount,
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, events.Envelope{
		EventID:       eventID,
		EventType:     contractsv1.EventTypeDistributionCompleted,
		OccurredAt:    s.now(),
		SourceService: sourceService,
		PartitionKey:  sessionID,
		SchemaVersion: 1,
		Data:          data,
	})
}

// availableLamports subtracts the fixed base reserve plus a per-transfer fee
// allowance from the pool balance, clamping at zero.
func (s *Service) availableLamports(balance uint64, minerCount int) uint64 {
	reserve := s.baseReserve() + s.perTransferFee()*uint64(minerCount)
	if balance <= reserve {
		return 0
	}
	return balance - reserve
}

func (s *Service) baseReserve() uint64 {
	if s.BaseReserveLamports == 0 {
		return defaultBaseReserveLamports
	}
	return s.BaseReserveLamports
}

func (s *Service) perTransferFee() uint64 {
	if s.PerTransferFeeLamports == 0 {
		return defaultPerTransferFeeLamports
	}
	return s.PerTransferFeeLamports
}

func (s *Service) newID(ctx context.Context) (string, error) {
	if s.IDGen == nil {
		return "", nil
	}
	return s.IDGen.NewID(ctx)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

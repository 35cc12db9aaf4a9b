package ports

import (
	"context"
	"time"

	engineports "solmine/contexts/mining-core/reward-engine/ports"
	"solmine/contexts/mining-core/session-service/domain/entities"
	sessionports "solmine/contexts/mining-core/session-service/ports"
	"solmine/internal/shared/events"
)

// Treasury is the funding account boundary: one balance read and one
// fire-and-confirm transfer. Implementations confirm on chain before
// returning the signature.
type Treasury interface {
	Address() string
	Balance(ctx context.Context) (uint64, error)
	Transfer(ctx context.Context, wallet string, lamports uint64) (string, error)
}

// SessionStore is the slice of the session service the orchestrator needs.
type SessionStore interface {
	SessionForDistribution(ctx context.Context) (sessionports.SessionView, error)
	MarkDistributed(ctx context.Context, sessionID string) error
	RecordDistribution(ctx context.Context, sessionID string, transfers []entities.DistributionRecord) error
}

type RewardEngine interface {
	ComputeRewards(miners []engineports.MinerPoints, availableLamports uint64) ([]engineports.Reward, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope events.Envelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]events.Envelope, error)
	MarkOutboxPublished(ctx context.Context, eventID string, publishedAt time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, envelope events.Envelope) error
}

// DistributionStatus is the user-visible outcome of one distribution
// trigger. Only StatusCompleted means transfers were attempted; the guard
// and no-op statuses are informational, not failures.
type DistributionStatus string

const (
	StatusCompleted          DistributionStatus = "completed"
	StatusAlreadyDistributed DistributionStatus = "already_distributed"
	StatusInProgress         DistributionStatus = "in_progress"
	StatusSessionOpen        DistributionStatus = "session_open"
	StatusNoMiners           DistributionStatus = "no_miners"
	StatusPoolEmpty          DistributionStatus = "pool_empty"
	StatusRewardsBelowDust   DistributionStatus = "rewards_below_dust"
)

type TransferResult struct {
	Wallet    string
	Lamports  uint64
	Signature string
	Error     string
	Success   bool
}

type DistributionResult struct {
	Status           DistributionStatus
	SessionID        string
	TotalDistributed uint64
	TransferCount    int
	SuccessCount     int
	Results          []TransferResult
}

type PoolSnapshot struct {
	Address           string
	BalanceLamports   uint64
	ReservedLamports  uint64
	SpendableLamports uint64
}

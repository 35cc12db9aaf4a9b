package ports

import (
	"context"
	"time"

	"solmine/contexts/mining-core/session-service/domain/entities"
)

// Repository persists the two session slots, the per-session miner sets and
// the capped distribution history. Each call is a short read-modify-write
// transaction from the caller's perspective; the repository serializes
// concurrent mutations.
type Repository interface {
	// CurrentSession returns the active session slot, or found=false when the
	// store is empty.
	CurrentSession(ctx context.Context) (session entities.Session, found bool, err error)

	// PreviousSession returns the closed-but-possibly-undistributed slot.
	PreviousSession(ctx context.Context) (session entities.Session, found bool, err error)

	// InstallSession sets the current slot without touching the previous one.
	// Used for first-time initialization.
	InstallSession(ctx context.Context, session entities.Session) error

	// RotateSessions moves the current session (with its accumulated miner
	// set) into the previous slot, installs next as current and starts next
	// with an empty miner set. The prior previous slot, if any, is discarded.
	RotateSessions(ctx context.Context, next entities.Session) error

	// MarkDistributed flips the distributed flag on whichever slot matches
	// sessionID. Unknown ids return domain ErrSessionUnknown.
	MarkDistributed(ctx context.Context, sessionID string) error

	// EnsureMiner creates a zero-point entry for wallet in the session if none
	// exists. Existing entries keep their points and join time.
	EnsureMiner(ctx context.Context, sessionID string, wallet string, joinedAt time.Time) error

	// AddPoints accumulates points onto the wallet's entry in the session,
	// creating the entry when absent, and returns the new total.
	AddPoints(ctx context.Context, sessionID string, wallet string, points int64, joinedAt time.Time) (int64, error)

	// ListMiners returns every miner entry recorded for the session. When the
	// session sits in the previous slot this is the snapshot taken at
	// rotation.
	ListMiners(ctx context.Context, sessionID string) ([]entities.MinerEntry, error)

	// AppendDistributions prepends records to the payout history and evicts
	// beyond the retention cap.
	AppendDistributions(ctx context.Context, records []entities.DistributionRecord) error

	// ListDistributions returns up to limit records, newest first.
	ListDistributions(ctx context.Context, limit int) ([]entities.DistributionRecord, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// SessionView is a session together with its miner snapshot, as handed to
// callers of the read operations.
type SessionView struct {
	Session entities.Session
	Miners  []entities.MinerEntry
}

type LeaderboardEntry struct {
	Wallet     string
	FullWallet string
	Points     int64
}

package application

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	domainerrors "solmine/contexts/mining-core/session-service/domain/errors"
	"solmine/contexts/mining-core/session-service/domain/entities"
	"solmine/contexts/mining-core/session-service/ports"
)

const (
	defaultSessionDuration = 2 * time.Minute
	defaultLeaderboardSize = 50
	defaultHistoryLimit    = 100

	minWalletLength = 32
	maxWalletLength = 44
)

type Service struct {
	Repo            ports.Repository
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	SessionDuration time.Duration
	LeaderboardSize int
	Logger          *slog.Logger
}

// CurrentSession returns the active session and its miners, rotating first if
// the active session has expired. Rotation is idempotent per expiry: the
// expired session moves to the previous slot exactly once and a single fresh
// session replaces it.
func (s Service) CurrentSession(ctx context.Context) (ports.SessionView, error) {
	session, err := s.ensureCurrent(ctx)
	if err != nil {
		return ports.SessionView{}, err
	}
	miners, err := s.Repo.ListMiners(ctx, session.ID)
	if err != nil {
		return ports.SessionView{}, err
	}
	return ports.SessionView{Session: session, Miners: miners}, nil
}

// SessionForDistribution returns the closed, not-yet-distributed session from
// the previous slot. When no such session exists it falls back to the current
// session; callers recognize that case by the session still being open.
func (s Service) SessionForDistribution(ctx context.Context) (ports.SessionView, error) {
	current, err := s.ensureCurrent(ctx)
	if err != nil {
		return ports.SessionView{}, err
	}

	previous, found, err := s.Repo.PreviousSession(ctx)
	if err != nil {
		return ports.SessionView{}, err
	}
	if found && !previous.Distributed {
		miners, err := s.Repo.ListMiners(ctx, previous.ID)
		if err != nil {
			return ports.SessionView{}, err
		}
		return ports.SessionView{Session: previous, Miners: miners}, nil
	}

	miners, err := s.Repo.ListMiners(ctx, current.ID)
	if err != nil {
		return ports.SessionView{}, err
	}
	return ports.SessionView{Session: current, Miners: miners}, nil
}

// Join ensures a zero-point miner entry for the wallet in the current
// session. Joining twice is a no-op; accumulated points are never reset.
func (s Service) Join(ctx context.Context, wallet string) (ports.SessionView, error) {
	if !isValidWallet(wallet) {
		return ports.SessionView{}, domainerrors.ErrInvalidWallet
	}
	session, err := s.ensureCurrent(ctx)
	if err != nil {
		return ports.SessionView{}, err
	}
	if err := s.Repo.EnsureMiner(ctx, session.ID, wallet, s.now()); err != nil {
		return ports.SessionView{}, err
	}
	miners, err := s.Repo.ListMiners(ctx, session.ID)
	if err != nil {
		return ports.SessionView{}, err
	}
	return ports.SessionView{Session: session, Miners: miners}, nil
}

// SubmitPoints accumulates points for the wallet in the current session and
// returns the wallet's new total plus the session the points landed in.
// Rotation happens before crediting: points submitted after expiry but before
// the client noticed are credited to the new session, not the closed one.
func (s Service) SubmitPoints(ctx context.Context, wallet string, points int64) (int64, entities.Session, error) {
	if !isValidWallet(wallet) {
		return 0, entities.Session{}, domainerrors.ErrInvalidWallet
	}
	if points <= 0 {
		return 0, entities.Session{}, domainerrors.ErrInvalidPoints
	}
	session, err := s.ensureCurrent(ctx)
	if err != nil {
		return 0, entities.Session{}, err
	}
	total, err := s.Repo.AddPoints(ctx, session.ID, wallet, points, s.now())
	if err != nil {
		return 0, entities.Session{}, err
	}
	return total, session, nil
}

// Leaderboard returns the current session's miners ordered by points
// descending, wallet ascending on ties, truncated to the configured size.
// Wallets are masked for display; the full wallet rides along for clients
// that need to highlight the caller's own row.
func (s Service) Leaderboard(ctx context.Context) ([]ports.LeaderboardEntry, error) {
	view, err := s.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	miners := append([]entities.MinerEntry(nil), view.Miners...)
	sort.Slice(miners, func(i, j int) bool {
		if miners[i].Points != miners[j].Points {
			return miners[i].Points > miners[j].Points
		}
		return miners[i].Wallet < miners[j].Wallet
	})

	size := s.LeaderboardSize
	if size <= 0 {
		size = defaultLeaderboardSize
	}
	if len(miners) > size {
		miners = miners[:size]
	}

	entries := make([]ports.LeaderboardEntry, 0, len(miners))
	for _, miner := range miners {
		entries = append(entries, ports.LeaderboardEntry{
			Wallet:     MaskWallet(miner.Wallet),
			FullWallet: miner.Wallet,
			Points:     miner.Points,
		})
	}
	return entries, nil
}

func (s Service) TotalPoints(ctx context.Context) (int64, error) {
	view, err := s.CurrentSession(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, miner := range view.Miners {
		total += miner.Points
	}
	return total, nil
}

func (s Service) MinerCount(ctx context.Context) (int, error) {
	view, err := s.CurrentSession(ctx)
	if err != nil {
		return 0, err
	}
	return len(view.Miners), nil
}

func (s Service) MarkDistributed(ctx context.Context, sessionID string) error {
	return s.Repo.MarkDistributed(ctx, sessionID)
}

// RecordDistribution appends the attempted transfers of one payout run to the
// capped history.
func (s Service) RecordDistribution(ctx context.Context, sessionID string, transfers []entities.DistributionRecord) error {
	if len(transfers) == 0 {
		return nil
	}
	now := s.now()
	records := make([]entities.DistributionRecord, 0, len(transfers))
	for _, transfer := range transfers {
		record := transfer
		record.SessionID = sessionID
		record.Timestamp = now
		if record.ID == "" && s.IDGen != nil {
			id, err := s.IDGen.NewID(ctx)
			if err != nil {
				return err
			}
			record.ID = id
		}
		records = append(records, record)
	}
	if err := s.Repo.AppendDistributions(ctx, records); err != nil {
		return err
	}
	resolveLogger(s.Logger).Info("distribution history recorded",
		"event", "distribution_history_recorded",
		"module", "mining-core/session-service",
		"layer", "application",
		"session_id", sessionID,
		"transfer_count", len(records),
	)
	return nil
}

func (s Service) Distributions(ctx context.Context, limit int) ([]entities.DistributionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.Repo.ListDistributions(ctx, limit)
}

// ensureCurrent loads the active session, creating or rotating as needed.
func (s Service) ensureCurrent(ctx context.Context) (entities.Session, error) {
	now := s.now()

	current, found, err := s.Repo.CurrentSession(ctx)
	if err != nil {
		return entities.Session{}, err
	}
	if !found {
		session := s.newSession(now, "")
		if err := s.Repo.InstallSession(ctx, session); err != nil {
			return entities.Session{}, err
		}
		return session, nil
	}
	if !current.Closed(now) {
		return current, nil
	}

	next := s.newSession(now, current.ID)
	if err := s.Repo.RotateSessions(ctx, next); err != nil {
		return entities.Session{}, err
	}
	resolveLogger(s.Logger).Info("session rotated",
		"event", "session_rotated",
		"module", "mining-core/session-service",
		"layer", "application",
		"closed_session_id", current.ID,
		"new_session_id", next.ID,
	)
	return next, nil
}

// newSession builds a fresh session whose id is the creation timestamp in
// milliseconds, bumped when needed so ids stay strictly increasing even if
// two rotations land inside one millisecond.
func (s Service) newSession(now time.Time, previousID string) entities.Session {
	id := now.UnixMilli()
	if prev, err := strconv.ParseInt(previousID, 10, 64); err == nil && prev >= id {
		id = prev + 1
	}
	return entities.Session{
		ID:        strconv.FormatInt(id, 10),
		StartTime: now,
		EndTime:   now.Add(s.sessionDuration()),
	}
}

func (s Service) sessionDuration() time.Duration {
	if s.SessionDuration <= 0 {
		return defaultSessionDuration
	}
	return s.SessionDuration
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

// MaskWallet shortens a wallet address to its first and last four characters
// for display.
func MaskWallet(wallet string) string {
	if len(wallet) <= 8 {
		return wallet
	}
	return wallet[:4] + "..." + wallet[len(wallet)-4:]
}

func isValidWallet(wallet string) bool {
	if len(wallet) < minWalletLength || len(wallet) > maxWalletLength {
		return false
	}
	for _, r := range wallet {
		switch {
		case r >= '1' && r <= '9':
		case r >= 'A' && r <= 'H':
		case r >= 'J' && r <= 'N':
		case r >= 'P' && r <= 'Z':
		case r >= 'a' && r <= 'k':
		case r >= 'm' && r <= 'z':
		default:
			return false
		}
	}
	return true
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

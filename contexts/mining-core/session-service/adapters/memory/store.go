package memory

import (
	"context"
	"sync"
	"time"

	domainerrors "solmine/contexts/mining-core/session-service/domain/errors"
	"solmine/contexts/mining-core/session-service/domain/entities"

	"github.com/google/uuid"
)

const defaultHistoryCap = 100

// Store keeps the session slots, miner sets and payout history in process
// memory. The mutex makes every repository call atomic, which is the
// serialization the application layer relies on.
type Store struct {
	mu sync.Mutex

	current  *entities.Session
	previous *entities.Session
	miners   map[string]map[string]entities.MinerEntry
	history  []entities.DistributionRecord

	HistoryCap int
}

func NewStore() *Store {
	return &Store{
		miners: make(map[string]map[string]entities.MinerEntry),
	}
}

func (s *Store) CurrentSession(_ context.Context) (entities.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return entities.Session{}, false, nil
	}
	return *s.current, true, nil
}

func (s *Store) PreviousSession(_ context.Context) (entities.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.previous == nil {
		return entities.Session{}, false, nil
	}
	return *s.previous, true, nil
}

func (s *Store) InstallSession(_ context.Context, session entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	installed := session
	s.current = &installed
	if s.miners[session.ID] == nil {
		s.miners[session.ID] = make(map[string]entities.MinerEntry)
	}
	return nil
}

func (s *Store) RotateSessions(_ context.Context, next entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return domainerrors.ErrNoSession
	}

	// The single previous slot is overwritten; an undistributed session that
	// was still sitting there loses its miner data. See the payout service
	// for why distribution normally lands before the next rotation.
	if s.previous != nil {
		delete(s.miners, s.previous.ID)
	}

	closed := *s.current
	s.previous = &closed

	installed := next
	s.current = &installed
	s.miners[next.ID] = make(map[string]entities.MinerEntry)
	return nil
}

func (s *Store) MarkDistributed(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := false
	if s.previous != nil && s.previous.ID == sessionID {
		s.previous.Distributed = true
		matched = true
	}
	if s.current != nil && s.current.ID == sessionID {
		s.current.Distributed = true
		matched = true
	}
	if !matched {
		return domainerrors.ErrSessionUnknown
	}
	return nil
}

func (s *Store) EnsureMiner(_ context.Context, sessionID string, wallet string, joinedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.minerSet(sessionID)
	if _, exists := set[wallet]; exists {
		return nil
	}
	set[wallet] = entities.MinerEntry{
		Wallet:   wallet,
		Points:   0,
		JoinedAt: joinedAt,
	}
	return nil
}

func (s *Store) AddPoints(_ context.Context, sessionID string, wallet string, points int64, joinedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.minerSet(sessionID)
	entry, exists := set[wallet]
	if !exists {
		entry = entities.MinerEntry{
			Wallet:   wallet,
			JoinedAt: joinedAt,
		}
	}
	entry.Points += points
	set[wallet] = entry
	return entry.Points, nil
}

func (s *Store) ListMiners(_ context.Context, sessionID string) ([]entities.MinerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.miners[sessionID]
	entries := make([]entities.MinerEntry, 0, len(set))
	for _, entry := range set {
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) AppendDistributions(_ context.Context, records []entities.DistributionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(append([]entities.DistributionRecord(nil), records...), s.history...)
	retain := s.HistoryCap
	if retain <= 0 {
		retain = defaultHistoryCap
	}
	if len(s.history) > retain {
		s.history = s.history[:retain]
	}
	return nil
}

func (s *Store) ListDistributions(_ context.Context, limit int) ([]entities.DistributionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	return append([]entities.DistributionRecord(nil), s.history[:limit]...), nil
}

// minerSet returns the mutable miner map for the session, creating it when
// absent. Callers hold the mutex.
func (s *Store) minerSet(sessionID string) map[string]entities.MinerEntry {
	set, ok := s.miners[sessionID]
	if !ok {
		set = make(map[string]entities.MinerEntry)
		s.miners[sessionID] = set
	}
	return set
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

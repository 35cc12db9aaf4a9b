package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solmine/internal/shared/events"

	"github.com/google/uuid"
)

// Treasury is an in-process funding account used by tests and by
// deployments without chain access. Transfers debit the balance and return
// synthetic signatures.
type Treasury struct {
	mu       sync.Mutex
	address  string
	balance  uint64
	failures map[string]error
	sent     []SentTransfer
}

type SentTransfer struct {
	Wallet   string
	Lamports uint64
}

func NewTreasury(address string, balance uint64) *Treasury {
	return &Treasury{
		address:  address,
		balance:  balance,
		failures: make(map[string]error),
	}
}

// FailTransfersTo makes every transfer to the wallet return err.
func (t *Treasury) FailTransfersTo(wallet string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[wallet] = err
}

func (t *Treasury) Address() string {
	return t.address
}

func (t *Treasury) Balance(_ context.Context) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance, nil
}

func (t *Treasury) Transfer(_ context.Context, wallet string, lamports uint64) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.failures[wallet]; err != nil {
		return "", err
	}
	if lamports > t.balance {
		return "", fmt.Errorf("insufficient funds: %d lamports requested, %d held", lamports, t.balance)
	}
	t.balance -= lamports
	t.sent = append(t.sent, SentTransfer{Wallet: wallet, Lamports: lamports})
	return uuid.NewString(), nil
}

func (t *Treasury) Sent() []SentTransfer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SentTransfer(nil), t.sent...)
}

// OutboxStore holds distribution events pending relay to the bus.
type OutboxStore struct {
	mu        sync.Mutex
	pending   []events.Envelope
	published map[string]time.Time
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{
		published: make(map[string]time.Time),
	}
}

func (s *OutboxStore) AppendOutbox(_ context.Context, envelope events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, envelope)
	return nil
}

func (s *OutboxStore) ListPendingOutbox(_ context.Context, limit int) ([]events.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.pending) {
		limit = len(s.pending)
	}
	out := make([]events.Envelope, 0, limit)
	for _, envelope := range s.pending[:limit] {
		if _, done := s.published[envelope.EventID]; done {
			continue
		}
		out = append(out, envelope)
	}
	return out, nil
}

func (s *OutboxStore) MarkOutboxPublished(_ context.Context, eventID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.published[eventID] = publishedAt.UTC()
	remaining := s.pending[:0]
	for _, envelope := range s.pending {
		if envelope.EventID != eventID {
			remaining = append(remaining, envelope)
		}
	}
	s.pending = remaining
	return nil
}

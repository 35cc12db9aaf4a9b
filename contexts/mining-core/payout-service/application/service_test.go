package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	payoutmemory "solmine/contexts/mining-core/payout-service/adapters/memory"
	domainerrors "solmine/contexts/mining-core/payout-service/domain/errors"
	"solmine/contexts/mining-core/payout-service/ports"
	engineapp "solmine/contexts/mining-core/reward-engine/application"
	sessionmemory "solmine/contexts/mining-core/session-service/adapters/memory"
	sessionapp "solmine/contexts/mining-core/session-service/application"
	contractsv1 "solmine/contracts/gen/events/v1"
)

var (
	walletA  = strings.Repeat("A", 32)
	walletB  = strings.Repeat("B", 32)
	treasury = strings.Repeat("T", 32)
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type seqIDGen struct {
	n int
}

func (g *seqIDGen) NewID(_ context.Context) (string, error) {
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

type fixture struct {
	clock    *fixedClock
	sessions sessionapp.Service
	treasury *payoutmemory.Treasury
	outbox   *payoutmemory.OutboxStore
	payout   *Service
}

func newFixture(balance uint64) *fixture {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	sessions := sessionapp.Service{
		Repo:            sessionmemory.NewStore(),
		Clock:           clock,
		IDGen:           &seqIDGen{},
		SessionDuration: 2 * time.Minute,
	}
	fundedTreasury := payoutmemory.NewTreasury(treasury, balance)
	outbox := payoutmemory.NewOutboxStore()
	return &fixture{
		clock:    clock,
		sessions: sessions,
		treasury: fundedTreasury,
		outbox:   outbox,
		payout: &Service{
			Sessions: sessions,
			Engine:   engineapp.Service{},
			Treasury: fundedTreasury,
			Outbox:   outbox,
			Clock:    clock,
			IDGen:    &seqIDGen{},
		},
	}
}

// closeSessionWithMiners credits points and pushes the clock past expiry so
// the next distribution sees a closed, undistributed session.
func (f *fixture) closeSessionWithMiners(t *testing.T, points map[string]int64) string {
	t.Helper()
	ctx := context.Background()
	var sessionID string
	for wallet, pts := range points {
		_, session, err := f.sessions.SubmitPoints(ctx, wallet, pts)
		if err != nil {
			t.Fatalf("SubmitPoints(%s): %v", wallet, err)
		}
		sessionID = session.ID
	}
	f.clock.Advance(3 * time.Minute)
	return sessionID
}

func TestDistributeCompletedProportionally(t *testing.T) {
	f := newFixture(1_000_000_000)
	sessionID := f.closeSessionWithMiners(t, map[string]int64{walletA: 70, walletB: 30})

	result, err := f.payout.Distribute(context.Background())
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if result.Status != ports.StatusCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.SessionID != sessionID {
		t.Fatalf("session id = %s, want %s", result.SessionID, sessionID)
	}
	if result.TransferCount != 2 || result.SuccessCount != 2 {
		t.Fatalf("transfers = %d/%d, want 2/2", result.SuccessCount, result.TransferCount)
	}

	// balance minus the 0.01 SOL base reserve minus two transfer fee slots.
	available := uint64(1_000_000_000 - 10_000_000 - 2*5_000)
	wantByWallet := map[string]uint64{
		walletA: available / 100 * 70,
		walletB: available / 100 * 30,
	}
	sent := f.treasury.Sent()
	if len(sent) != 2 {
		t.Fatalf("treasury sent %d transfers", len(sent))
	}
	for _, transfer := range sent {
		if transfer.Lamports != wantByWallet[transfer.Wallet] {
			t.Fatalf("wallet %s got %d lamports, want %d", transfer.Wallet, transfer.Lamports, wantByWallet[transfer.Wallet])
		}
	}
	if result.TotalDistributed != available/100*70+available/100*30 {
		t.Fatalf("total distributed = %d", result.TotalDistributed)
	}

	records, err := f.sessions.Distributions(context.Background(), 0)
	if err != nil {
		t.Fatalf("Distributions: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("history has %d records, want 2", len(records))
	}

	pending, err := f.outbox.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("outbox has %d events, want 1", len(pending))
	}
	if pending[0].EventType != contractsv1.EventTypeDistributionCompleted {
		t.Fatalf("event type = %s", pending[0].EventType)
	}
	if pending[0].PartitionKey != sessionID {
		t.Fatalf("partition key = %s, want %s", pending[0].PartitionKey, sessionID)
	}
	var payload contractsv1.DistributionCompletedData
	if err := json.Unmarshal(pending[0].Data, &payload); err != nil {
		t.Fatalf("decode outbox payload: %v", err)
	}
	if payload.SessionID != sessionID {
		t.Fatalf("payload session id = %s, want %s", payload.SessionID, sessionID)
	}
	if payload.TotalDistributedLamports != result.TotalDistributed {
		t.Fatalf("payload total = %d, want %d", payload.TotalDistributedLamports, result.TotalDistributed)
	}
	if payload.TransferCount != 2 || payload.SuccessCount != 2 {
		t.Fatalf("payload transfers = %d/%d, want 2/2", payload.SuccessCount, payload.TransferCount)
	}
}

func TestDistributeTwiceReportsAlreadyDistributed(t *testing.T) {
	f := newFixture(1_000_000_000)
	sessionID := f.closeSessionWithMiners(t, map[string]int64{walletA: 70, walletB: 30})

	if _, err := f.payout.Distribute(context.Background()); err != nil {
		t.Fatalf("first Distribute: %v", err)
	}
	result, err := f.payout.Distribute(context.Background())
	if err != nil {
		t.Fatalf("second Distribute: %v", err)
	}
	if result.Status != ports.StatusAlreadyDistributed {
		t.Fatalf("status = %s, want already_distributed", result.Status)
	}
	if result.SessionID != sessionID {
		t.Fatalf("session id = %s, want %s", result.SessionID, sessionID)
	}
	if len(f.treasury.Sent()) != 2 {
		t.Fatal("second trigger moved funds")
	}
}

func TestDistributeOpenSessionIsNoOp(t *testing.T) {
	f := newFixture(1_000_000_000)
	ctx := context.Background()
	if _, _, err := f.sessions.SubmitPoints(ctx, walletA, 10); err != nil {
		t.Fatalf("SubmitPoints: %v", err)
	}

	result, err := f.payout.Distribute(ctx)
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if result.Status != ports.StatusSessionOpen {
		t.Fatalf("status = %s, want session_open", result.Status)
	}
	if len(f.treasury.Sent()) != 0 {
		t.Fatal("open session must not pay out")
	}

	// The open-session no-op leaves no guard state behind; once the session
	// closes the same trigger distributes it.
	f.clock.Advance(3 * time.Minute)
	result, err = f.payout.Distribute(ctx)
	if err != nil {
		t.Fatalf("Distribute after close: %v", err)
	}
	if result.Status != ports.StatusCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
}

func TestDistributeNoMiners(t *testing.T) {
	f := newFixture(1_000_000_000)
	ctx := context.Background()
	if _, err := f.sessions.Join(ctx, walletA); err != nil {
		t.Fatalf("Join: %v", err)
	}
	f.clock.Advance(3 * time.Minute)

	result, err := f.payout.Distribute(ctx)
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if result.Status != ports.StatusNoMiners {
		t.Fatalf("status = %s, want no_miners", result.Status)
	}
}

func TestDistributeWithoutTreasury(t *testing.T) {
	f := newFixture(1_000_000_000)
	f.payout.Treasury = nil
	f.closeSessionWithMiners(t, map[string]int64{walletA: 10})

	_, err := f.payout.Distribute(context.Background())
	if !errors.Is(err, domainerrors.ErrTreasuryNotConfigured) {
		t.Fatalf("expected ErrTreasuryNotConfigured, got %v", err)
	}

	// The failed attempt released the in-progress flag and consumed the
	// session; the next trigger is a guard outcome, not a stuck lock.
	result, err := f.payout.Distribute(context.Background())
	if err != nil {
		t.Fatalf("Distribute after failure: %v", err)
	}
	if result.Status != ports.StatusAlreadyDistributed {
		t.Fatalf("status = %s, want already_distributed", result.Status)
	}
}

func TestDistributeIsolatesTransferFailures(t *testing.T) {
	f := newFixture(1_000_000_000)
	sessionID := f.closeSessionWithMiners(t, map[string]int64{walletA: 70, walletB: 30})
	f.treasury.FailTransfersTo(walletA, errors.New("rpc timeout"))

	result, err := f.payout.Distribute(context.Background())
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if result.Status != ports.StatusCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.TransferCount != 2 || result.SuccessCount != 1 {
		t.Fatalf("transfers = %d/%d, want 1/2", result.SuccessCount, result.TransferCount)
	}

	var failed, succeeded bool
	for _, transfer := range result.Results {
		if transfer.Wallet == walletA {
			failed = !transfer.Success && transfer.Error == "rpc timeout"
		}
		if transfer.Wallet == walletB {
			succeeded = transfer.Success && transfer.Signature != ""
		}
	}
	if !failed || !succeeded {
		t.Fatalf("failure isolation broken: %+v", result.Results)
	}

	// Both attempts land in history and the session still settles.
	records, err := f.sessions.Distributions(context.Background(), 0)
	if err != nil {
		t.Fatalf("Distributions: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("history has %d records, want 2", len(records))
	}
	view, err := f.sessions.SessionForDistribution(context.Background())
	if err != nil {
		t.Fatalf("SessionForDistribution: %v", err)
	}
	if view.Session.ID == sessionID {
		t.Fatal("session not marked distributed")
	}
}

func TestDistributePoolEmpty(t *testing.T) {
	// Balance fully consumed by the base reserve.
	f := newFixture(10_000_000)
	f.closeSessionWithMiners(t, map[string]int64{walletA: 10})

	result, err := f.payout.Distribute(context.Background())
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if result.Status != ports.StatusPoolEmpty {
		t.Fatalf("status = %s, want pool_empty", result.Status)
	}
}

func TestDistributeRewardsBelowDust(t *testing.T) {
	// 4000 spendable lamports for a single miner, under the 5000 dust floor.
	f := newFixture(10_000_000 + 5_000 + 4_000)
	f.closeSessionWithMiners(t, map[string]int64{walletA: 10})

	result, err := f.payout.Distribute(context.Background())
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if result.Status != ports.StatusRewardsBelowDust {
		t.Fatalf("status = %s, want rewards_below_dust", result.Status)
	}
	if len(f.treasury.Sent()) != 0 {
		t.Fatal("dust run must not transfer")
	}
}

type gateTreasury struct {
	inner   *payoutmemory.Treasury
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateTreasury) Address() string {
	return g.inner.Address()
}

func (g *gateTreasury) Balance(ctx context.Context) (uint64, error) {
	return g.inner.Balance(ctx)
}

func (g *gateTreasury) Transfer(ctx context.Context, wallet string, lamports uint64) (string, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.inner.Transfer(ctx, wallet, lamports)
}

func TestDistributeConcurrentTriggerReportsInProgress(t *testing.T) {
	f := newFixture(1_000_000_000)
	f.closeSessionWithMiners(t, map[string]int64{walletA: 70, walletB: 30})

	gate := &gateTreasury{
		inner:   f.treasury,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f.payout.Treasury = gate

	done := make(chan ports.DistributionResult, 1)
	go func() {
		result, err := f.payout.Distribute(context.Background())
		if err != nil {
			t.Errorf("background Distribute: %v", err)
		}
		done <- result
	}()

	<-gate.started
	result, err := f.payout.Distribute(context.Background())
	if err != nil {
		t.Fatalf("concurrent Distribute: %v", err)
	}
	if result.Status != ports.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", result.Status)
	}

	close(gate.release)
	first := <-done
	if first.Status != ports.StatusCompleted {
		t.Fatalf("background status = %s, want completed", first.Status)
	}
}

func TestPoolSnapshot(t *testing.T) {
	f := newFixture(1_000_000_000)
	snapshot, err := f.payout.PoolSnapshot(context.Background())
	if err != nil {
		t.Fatalf("PoolSnapshot: %v", err)
	}
	if snapshot.BalanceLamports != 1_000_000_000 {
		t.Fatalf("balance = %d", snapshot.BalanceLamports)
	}
	if snapshot.ReservedLamports != 10_000_000 {
		t.Fatalf("reserved = %d", snapshot.ReservedLamports)
	}
	if snapshot.SpendableLamports != 990_000_000 {
		t.Fatalf("spendable = %d", snapshot.SpendableLamports)
	}
	if snapshot.Address != treasury {
		t.Fatalf("address = %s", snapshot.Address)
	}

	f.payout.Treasury = nil
	if _, err := f.payout.PoolSnapshot(context.Background()); !errors.Is(err, domainerrors.ErrTreasuryNotConfigured) {
		t.Fatalf("expected ErrTreasuryNotConfigured, got %v", err)
	}
}

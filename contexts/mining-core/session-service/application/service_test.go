package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"solmine/contexts/mining-core/session-service/adapters/memory"
	domainerrors "solmine/contexts/mining-core/session-service/domain/errors"
	"solmine/contexts/mining-core/session-service/domain/entities"
)

var (
	walletA = strings.Repeat("A", 32)
	walletB = strings.Repeat("B", 32)
	walletC = strings.Repeat("C", 32)
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

func newTestService(clock *fixedClock) (Service, *memory.Store) {
	store := memory.NewStore()
	return Service{
		Repo:            store,
		Clock:           clock,
		IDGen:           &seqIDGen{},
		SessionDuration: 2 * time.Minute,
	}, store
}

func TestCurrentSessionCreatesFirstSession(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)

	view, err := svc.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession: %v", err)
	}
	if view.Session.ID == "" {
		t.Fatal("expected a session id")
	}
	if got := view.Session.EndTime.Sub(view.Session.StartTime); got != 2*time.Minute {
		t.Fatalf("expected 2m session, got %s", got)
	}
	if len(view.Miners) != 0 {
		t.Fatalf("expected no miners, got %d", len(view.Miners))
	}
}

func TestCurrentSessionRotatesAfterExpiry(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, store := newTestService(clock)

	first, err := svc.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession: %v", err)
	}
	if _, err := svc.Join(context.Background(), walletA); err != nil {
		t.Fatalf("Join: %v", err)
	}

	clock.Advance(3 * time.Minute)
	second, err := svc.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession after expiry: %v", err)
	}
	if second.Session.ID == first.Session.ID {
		t.Fatal("expected a new session after expiry")
	}
	if second.Session.ID <= first.Session.ID {
		t.Fatalf("session ids must increase: %s then %s", first.Session.ID, second.Session.ID)
	}
	if len(second.Miners) != 0 {
		t.Fatal("new session must start with no miners")
	}

	previous, found, err := store.PreviousSession(context.Background())
	if err != nil || !found {
		t.Fatalf("previous session missing: found=%v err=%v", found, err)
	}
	if previous.ID != first.Session.ID {
		t.Fatalf("previous slot holds %s, want %s", previous.ID, first.Session.ID)
	}
	miners, err := store.ListMiners(context.Background(), previous.ID)
	if err != nil {
		t.Fatalf("ListMiners: %v", err)
	}
	if len(miners) != 1 || miners[0].Wallet != walletA {
		t.Fatalf("closed session miners lost: %+v", miners)
	}
}

func TestJoinRejectsInvalidWallet(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)

	for _, wallet := range []string{"", "short", strings.Repeat("A", 45), strings.Repeat("0", 32), strings.Repeat("I", 32)} {
		if _, err := svc.Join(context.Background(), wallet); !errors.Is(err, domainerrors.ErrInvalidWallet) {
			t.Fatalf("wallet %q: expected ErrInvalidWallet, got %v", wallet, err)
		}
	}
}

func TestJoinIsIdempotentAndPreservesPoints(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)

	if _, err := svc.Join(context.Background(), walletA); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, _, err := svc.SubmitPoints(context.Background(), walletA, 5); err != nil {
		t.Fatalf("SubmitPoints: %v", err)
	}
	view, err := svc.Join(context.Background(), walletA)
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if len(view.Miners) != 1 {
		t.Fatalf("expected one miner, got %d", len(view.Miners))
	}
	if view.Miners[0].Points != 5 {
		t.Fatalf("rejoin reset points: got %d, want 5", view.Miners[0].Points)
	}
}

func TestSubmitPointsAccumulates(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)

	total, _, err := svc.SubmitPoints(context.Background(), walletA, 5)
	if err != nil {
		t.Fatalf("SubmitPoints: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	total, _, err = svc.SubmitPoints(context.Background(), walletA, 3)
	if err != nil {
		t.Fatalf("SubmitPoints: %v", err)
	}
	if total != 8 {
		t.Fatalf("total = %d, want 8", total)
	}
}

func TestSubmitPointsRejectsNonPositive(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)

	for _, points := range []int64{0, -1, -100} {
		if _, _, err := svc.SubmitPoints(context.Background(), walletA, points); !errors.Is(err, domainerrors.ErrInvalidPoints) {
			t.Fatalf("points %d: expected ErrInvalidPoints, got %v", points, err)
		}
	}
}

func TestSubmitPointsAfterExpiryCreditsNewSession(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)

	_, first, err := svc.SubmitPoints(context.Background(), walletA, 10)
	if err != nil {
		t.Fatalf("SubmitPoints: %v", err)
	}

	clock.Advance(3 * time.Minute)
	total, second, err := svc.SubmitPoints(context.Background(), walletA, 4)
	if err != nil {
		t.Fatalf("SubmitPoints after expiry: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("points landed in the closed session")
	}
	if total != 4 {
		t.Fatalf("new-session total = %d, want 4", total)
	}
}

func TestLeaderboardOrderingAndMasking(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)

	ctx := context.Background()
	mustSubmit(t, svc, ctx, walletB, 30)
	mustSubmit(t, svc, ctx, walletA, 70)
	mustSubmit(t, svc, ctx, walletC, 30)

	entries, err := svc.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].FullWallet != walletA {
		t.Fatalf("top entry %s, want %s", entries[0].FullWallet, walletA)
	}
	// Tie on points falls back to wallet order.
	if entries[1].FullWallet != walletB || entries[2].FullWallet != walletC {
		t.Fatalf("tie-break order wrong: %s then %s", entries[1].FullWallet, entries[2].FullWallet)
	}
	if entries[0].Wallet != "AAAA...AAAA" {
		t.Fatalf("masked wallet = %q", entries[0].Wallet)
	}
}

func TestLeaderboardTruncatesToConfiguredSize(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)
	svc.LeaderboardSize = 2

	ctx := context.Background()
	mustSubmit(t, svc, ctx, walletA, 1)
	mustSubmit(t, svc, ctx, walletB, 2)
	mustSubmit(t, svc, ctx, walletC, 3)

	entries, err := svc.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].FullWallet != walletC || entries[1].FullWallet != walletB {
		t.Fatalf("wrong top two: %s, %s", entries[0].FullWallet, entries[1].FullWallet)
	}
}

func TestSessionForDistributionPrefersClosedPrevious(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)

	ctx := context.Background()
	_, first, err := svc.SubmitPoints(ctx, walletA, 10)
	if err != nil {
		t.Fatalf("SubmitPoints: %v", err)
	}

	clock.Advance(3 * time.Minute)
	view, err := svc.SessionForDistribution(ctx)
	if err != nil {
		t.Fatalf("SessionForDistribution: %v", err)
	}
	if view.Session.ID != first.ID {
		t.Fatalf("expected closed session %s, got %s", first.ID, view.Session.ID)
	}
	if !view.Session.Closed(clock.Now()) {
		t.Fatal("closed session reported open")
	}
	if len(view.Miners) != 1 {
		t.Fatalf("expected the closed session's miners, got %d", len(view.Miners))
	}

	if err := svc.MarkDistributed(ctx, first.ID); err != nil {
		t.Fatalf("MarkDistributed: %v", err)
	}
	view, err = svc.SessionForDistribution(ctx)
	if err != nil {
		t.Fatalf("SessionForDistribution after mark: %v", err)
	}
	if view.Session.ID == first.ID {
		t.Fatal("distributed session offered for distribution again")
	}
}

func TestRecordDistributionStampsRecords(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)

	ctx := context.Background()
	err := svc.RecordDistribution(ctx, "1234", []entities.DistributionRecord{
		{Wallet: walletA, Lamports: 700, Success: true, Signature: "sig-a"},
		{Wallet: walletB, Lamports: 300, Error: "rpc timeout"},
	})
	if err != nil {
		t.Fatalf("RecordDistribution: %v", err)
	}

	records, err := svc.Distributions(ctx, 0)
	if err != nil {
		t.Fatalf("Distributions: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, record := range records {
		if record.SessionID != "1234" {
			t.Fatalf("record session id = %q", record.SessionID)
		}
		if record.ID == "" {
			t.Fatal("record id not assigned")
		}
		if !record.Timestamp.Equal(clock.Now()) {
			t.Fatalf("record timestamp = %s", record.Timestamp)
		}
	}
}

func TestMaskWallet(t *testing.T) {
	if got := MaskWallet("ABCDEFGHJKLMNPQRSTUVWXYZabcdefgh"); got != "ABCD...efgh" {
		t.Fatalf("MaskWallet = %q", got)
	}
	if got := MaskWallet("short"); got != "short" {
		t.Fatalf("short wallet must pass through, got %q", got)
	}
}

func mustSubmit(t *testing.T, svc Service, ctx context.Context, wallet string, points int64) {
	t.Helper()
	if _, _, err := svc.SubmitPoints(ctx, wallet, points); err != nil {
		t.Fatalf("SubmitPoints(%s, %d): %v", wallet, points, err)
	}
}

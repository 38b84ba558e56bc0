package reveal

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/events"
	"github.com/chainlot/lottery-engine/internal/storage/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	svc   *Service
	store *memory.Store
	clock *fakeClock
	rec   *events.Recorder
	lot   lottery.Lottery
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := events.NewRecorder()

	lot, err := store.CreateLottery(context.Background(), lottery.Lottery{
		StartTime:         clock.now,
		EndTime:           clock.now.Add(2 * time.Hour),
		TotalTicketCap:    100,
		WinnersCount:      3,
		MinSalePercentage: 50,
		TicketPrice:       5,
	})
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{svc: New(store, clock, rec, nil), store: store, clock: clock, rec: rec, lot: lot}
}

func (f *fixture) buy(t *testing.T, buyer string, quantity int, secret []byte) lottery.PurchaseTx {
	t.Helper()
	p, err := f.store.AppendPurchase(context.Background(), lottery.PurchaseTx{
		LotteryID:     f.lot.ID,
		Buyer:         buyer,
		Quantity:      quantity,
		CommittedHash: lottery.DigestSecret(secret),
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReveal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := []byte("alice-secret")
	p := f.buy(t, "alice", 10, secret)

	if err := f.svc.Reveal(ctx, f.lot.ID, p.StartTicketNo, 10, secret); err != nil {
		t.Fatalf("Reveal: %v", err)
	}

	seed, err := f.svc.Seed(ctx, f.lot.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(seed, lottery.FoldSeed(nil, secret)) {
		t.Fatal("seed should be the fold of the revealed secret")
	}
	if len(f.rec.ByTopic(events.TopicSecretRevealed)) != 1 {
		t.Error("reveal event not published")
	}
}

func TestRevealWrongSecret(t *testing.T) {
	f := newFixture(t)
	p := f.buy(t, "alice", 10, []byte("real"))

	err := f.svc.Reveal(context.Background(), f.lot.ID, p.StartTicketNo, 10, []byte("fake"))
	if !errors.Is(err, lottery.ErrHashMismatch) {
		t.Fatalf("err = %v, want ErrHashMismatch", err)
	}

	seed, _ := f.svc.Seed(context.Background(), f.lot.ID)
	if seed != nil {
		t.Fatal("failed reveal must not touch the seed")
	}
}

func TestRevealTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := []byte("alice-secret")
	p := f.buy(t, "alice", 10, secret)

	if err := f.svc.Reveal(ctx, f.lot.ID, p.StartTicketNo, 10, secret); err != nil {
		t.Fatal(err)
	}
	seedAfterFirst, _ := f.svc.Seed(ctx, f.lot.ID)

	err := f.svc.Reveal(ctx, f.lot.ID, p.StartTicketNo, 10, secret)
	if !errors.Is(err, lottery.ErrAlreadyRevealed) {
		t.Fatalf("err = %v, want ErrAlreadyRevealed", err)
	}

	seed, _ := f.svc.Seed(ctx, f.lot.ID)
	if !bytes.Equal(seed, seedAfterFirst) {
		t.Fatal("repeated reveal must not fold the secret again")
	}
}

func TestRevealIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := []byte("alice-secret")
	p := f.buy(t, "alice", 10, secret)

	// Wrong quantity does not identify the purchase.
	err := f.svc.Reveal(ctx, f.lot.ID, p.StartTicketNo, 9, secret)
	if !errors.Is(err, lottery.ErrNoSuchPurchase) {
		t.Fatalf("err = %v, want ErrNoSuchPurchase", err)
	}

	err = f.svc.Reveal(ctx, f.lot.ID, p.StartTicketNo+1, 10, secret)
	if !errors.Is(err, lottery.ErrNoSuchPurchase) {
		t.Fatalf("err = %v, want ErrNoSuchPurchase", err)
	}
}

func TestRevealWindowCloses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := []byte("alice-secret")
	p := f.buy(t, "alice", 10, secret)

	// Reveals are accepted during the purchase phase too.
	if err := f.svc.Reveal(ctx, f.lot.ID, p.StartTicketNo, 10, secret); err != nil {
		t.Fatalf("reveal in purchase phase: %v", err)
	}

	late := f.buy(t, "bob", 5, []byte("bob-secret"))
	f.clock.now = f.lot.EndTime
	err := f.svc.Reveal(ctx, f.lot.ID, late.StartTicketNo, 5, []byte("bob-secret"))
	if !errors.Is(err, lottery.ErrRevealWindowClosed) {
		t.Fatalf("err = %v, want ErrRevealWindowClosed", err)
	}

	// The seed is frozen from the end time on.
	seed, _ := f.svc.Seed(ctx, f.lot.ID)
	if !bytes.Equal(seed, lottery.FoldSeed(nil, secret)) {
		t.Fatal("late reveal must not change the frozen seed")
	}
}

func TestSeedFollowsRevealOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, s2 := []byte("one"), []byte("two")
	p1 := f.buy(t, "alice", 5, s1)
	p2 := f.buy(t, "bob", 5, s2)

	// Reveal in reverse purchase order; arrival order drives the fold.
	if err := f.svc.Reveal(ctx, f.lot.ID, p2.StartTicketNo, 5, s2); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Reveal(ctx, f.lot.ID, p1.StartTicketNo, 5, s1); err != nil {
		t.Fatal(err)
	}

	seed, _ := f.svc.Seed(ctx, f.lot.ID)
	want := lottery.FoldSeed(lottery.FoldSeed(nil, s2), s1)
	if !bytes.Equal(seed, want) {
		t.Fatal("seed should fold secrets in reveal arrival order")
	}
}

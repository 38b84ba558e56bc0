package memory

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
)

func newLottery(t *testing.T, store *Store) lottery.Lottery {
	t.Helper()
	lot, err := store.CreateLottery(context.Background(), lottery.Lottery{
		StartTime:         time.Now().UTC(),
		EndTime:           time.Now().UTC().Add(time.Hour),
		TotalTicketCap:    100,
		WinnersCount:      3,
		MinSalePercentage: 50,
		TicketPrice:       5,
	})
	if err != nil {
		t.Fatalf("CreateLottery: %v", err)
	}
	return lot
}

func TestSequentialIDs(t *testing.T) {
	store := New()
	ctx := context.Background()

	if id, _ := store.CurrentLotteryID(ctx); id != 0 {
		t.Fatalf("empty store current id = %d, want 0", id)
	}

	first := newLottery(t, store)
	second := newLottery(t, store)
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", first.ID, second.ID)
	}
	if id, _ := store.CurrentLotteryID(ctx); id != 2 {
		t.Fatalf("current id = %d, want 2", id)
	}
}

func TestAppendPurchaseContiguousRanges(t *testing.T) {
	store := New()
	ctx := context.Background()
	lot := newLottery(t, store)

	for i, q := range []int{5, 30, 1} {
		p, err := store.AppendPurchase(ctx, lottery.PurchaseTx{
			LotteryID: lot.ID, Buyer: "alice", Quantity: q, CommittedHash: []byte{1},
		})
		if err != nil {
			t.Fatalf("purchase %d: %v", i, err)
		}
		if p.ID == "" {
			t.Fatal("purchase id not assigned")
		}
		switch i {
		case 0:
			if p.StartTicketNo != 0 {
				t.Fatalf("first range starts at %d", p.StartTicketNo)
			}
		case 1:
			if p.StartTicketNo != 5 {
				t.Fatalf("second range starts at %d, want 5", p.StartTicketNo)
			}
		case 2:
			if p.StartTicketNo != 35 {
				t.Fatalf("third range starts at %d, want 35", p.StartTicketNo)
			}
		}
	}

	got, err := store.GetLottery(ctx, lot.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TicketsSold != 36 {
		t.Fatalf("tickets sold = %d, want 36", got.TicketsSold)
	}
}

func TestConcurrentPurchasesNoOverlap(t *testing.T) {
	store := New()
	ctx := context.Background()
	lot := newLottery(t, store)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AppendPurchase(ctx, lottery.PurchaseTx{
				LotteryID: lot.ID, Buyer: "b", Quantity: 2, CommittedHash: []byte{1},
			}); err != nil {
				t.Errorf("AppendPurchase: %v", err)
			}
		}()
	}
	wg.Wait()

	purchases, err := store.ListPurchases(ctx, lot.ID)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int64]bool)
	for _, p := range purchases {
		for ticket := p.StartTicketNo; ticket < p.StartTicketNo+int64(p.Quantity); ticket++ {
			if seen[ticket] {
				t.Fatalf("ticket %d allocated twice", ticket)
			}
			seen[ticket] = true
		}
	}
	if len(seen) != n*2 {
		t.Fatalf("allocated %d tickets, want %d", len(seen), n*2)
	}
}

func TestMarkRevealedFoldsSeedUnderLock(t *testing.T) {
	store := New()
	ctx := context.Background()
	lot := newLottery(t, store)

	secrets := [][]byte{[]byte("one"), []byte("two")}
	for _, secret := range secrets {
		p, err := store.AppendPurchase(ctx, lottery.PurchaseTx{
			LotteryID: lot.ID, Buyer: "b", Quantity: 1,
			CommittedHash: lottery.DigestSecret(secret),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := store.MarkRevealed(ctx, lot.ID, p.StartTicketNo, secret); err != nil {
			t.Fatalf("MarkRevealed: %v", err)
		}
	}

	got, err := store.GetLottery(ctx, lot.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := lottery.FoldSeed(lottery.FoldSeed(nil, secrets[0]), secrets[1])
	if !bytes.Equal(got.Seed, want) {
		t.Fatal("seed does not match the fold of secrets in reveal order")
	}

	err = store.MarkRevealed(ctx, lot.ID, 0, secrets[0])
	if !errors.Is(err, lottery.ErrAlreadyRevealed) {
		t.Fatalf("second reveal err = %v, want ErrAlreadyRevealed", err)
	}
}

func TestFindPurchaseIdentity(t *testing.T) {
	store := New()
	ctx := context.Background()
	lot := newLottery(t, store)

	p, err := store.AppendPurchase(ctx, lottery.PurchaseTx{
		LotteryID: lot.ID, Buyer: "alice", Quantity: 10, CommittedHash: []byte{1},
	})
	if err != nil {
		t.Fatal(err)
	}

	found, err := store.FindPurchase(ctx, lot.ID, p.StartTicketNo, 10)
	if err != nil {
		t.Fatalf("FindPurchase: %v", err)
	}
	if found.ID != p.ID {
		t.Fatal("found a different purchase")
	}

	// Right start, wrong quantity does not identify the purchase.
	if _, err := store.FindPurchase(ctx, lot.ID, p.StartTicketNo, 9); !errors.Is(err, lottery.ErrNoSuchPurchase) {
		t.Fatalf("err = %v, want ErrNoSuchPurchase", err)
	}
}

func TestWinnersLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()
	lot := newLottery(t, store)

	if _, err := store.GetWinners(ctx, lot.ID); !errors.Is(err, lottery.ErrNotFinalized) {
		t.Fatalf("err = %v, want ErrNotFinalized", err)
	}

	if err := store.SetWinners(ctx, lot.ID, []int64{3, 1, 4}); err != nil {
		t.Fatal(err)
	}
	// Concurrent finalizers may race; the first stored set wins.
	if err := store.SetWinners(ctx, lot.ID, []int64{9, 9, 9}); err != nil {
		t.Fatal(err)
	}

	winners, err := store.GetWinners(ctx, lot.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(winners) != 3 || winners[0] != 3 || winners[1] != 1 || winners[2] != 4 {
		t.Fatalf("winners = %v, want [3 1 4]", winners)
	}
}

func TestClaimsAreExclusive(t *testing.T) {
	store := New()
	ctx := context.Background()
	lot := newLottery(t, store)

	if err := store.ClaimProceeds(ctx, lot.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.ClaimProceeds(ctx, lot.ID); !errors.Is(err, lottery.ErrAlreadyWithdrawn) {
		t.Fatalf("err = %v, want ErrAlreadyWithdrawn", err)
	}
	if err := store.ReleaseProceeds(ctx, lot.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.ClaimProceeds(ctx, lot.ID); err != nil {
		t.Fatalf("claim after release: %v", err)
	}

	if _, err := store.AppendPurchase(ctx, lottery.PurchaseTx{
		LotteryID: lot.ID, Buyer: "b", Quantity: 1, CommittedHash: []byte{1},
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.ClaimRefund(ctx, lot.ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := store.ClaimRefund(ctx, lot.ID, 0); !errors.Is(err, lottery.ErrAlreadyRefunded) {
		t.Fatalf("err = %v, want ErrAlreadyRefunded", err)
	}
	if err := store.ClaimRefund(ctx, lot.ID, 1); !errors.Is(err, lottery.ErrNoSuchPurchase) {
		t.Fatalf("err = %v, want ErrNoSuchPurchase", err)
	}
}

func TestUnknownLottery(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.GetLottery(ctx, 42); !errors.Is(err, lottery.ErrNoSuchLottery) {
		t.Fatalf("GetLottery err = %v", err)
	}
	if _, err := store.AppendPurchase(ctx, lottery.PurchaseTx{LotteryID: 42}); !errors.Is(err, lottery.ErrNoSuchLottery) {
		t.Fatalf("AppendPurchase err = %v", err)
	}
	if _, err := store.ListPurchases(ctx, 42); !errors.Is(err, lottery.ErrNoSuchLottery) {
		t.Fatalf("ListPurchases err = %v", err)
	}
	if _, err := store.GetWinners(ctx, 42); !errors.Is(err, lottery.ErrNoSuchLottery) {
		t.Fatalf("GetWinners err = %v", err)
	}
}

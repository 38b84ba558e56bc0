// Package memory provides an in-memory LotteryStore. It is safe for
// concurrent use and backs tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/storage"
)

type record struct {
	lot       lottery.Lottery
	purchases []lottery.PurchaseTx
	winners   []int64
	finalized bool
	refunded  map[int]bool
}

// Store is an in-memory implementation of storage.LotteryStore. A single
// mutex serializes all mutations, which also gives the engine its
// transaction-like execution model.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*record
}

var _ storage.LotteryStore = (*Store)(nil)

// New creates an empty store. Lottery IDs start at 1.
func New() *Store {
	return &Store{nextID: 1, byID: make(map[int64]*record)}
}

func (s *Store) CreateLottery(_ context.Context, lot lottery.Lottery) (lottery.Lottery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	lot.CreatedAt = now
	lot.UpdatedAt = now
	s.byID[lot.ID] = &record{lot: lot, refunded: make(map[int]bool)}
	return lot, nil
}

func (s *Store) GetLottery(_ context.Context, id int64) (lottery.Lottery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return lottery.Lottery{}, lottery.ErrNoSuchLottery
	}
	lot := rec.lot
	lot.Winners = append([]int64(nil), rec.winners...)
	return lot, nil
}

func (s *Store) CurrentLotteryID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID - 1, nil
}

func (s *Store) AppendPurchase(_ context.Context, p lottery.PurchaseTx) (lottery.PurchaseTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[p.LotteryID]
	if !ok {
		return lottery.PurchaseTx{}, lottery.ErrNoSuchLottery
	}

	p.ID = uuid.NewString()
	p.StartTicketNo = rec.lot.TicketsSold
	rec.purchases = append(rec.purchases, p)
	rec.lot.TicketsSold += int64(p.Quantity)
	rec.lot.UpdatedAt = time.Now().UTC()
	return p, nil
}

func (s *Store) GetPurchase(_ context.Context, lotteryID int64, index int) (lottery.PurchaseTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return lottery.PurchaseTx{}, lottery.ErrNoSuchLottery
	}
	if index < 0 || index >= len(rec.purchases) {
		return lottery.PurchaseTx{}, lottery.ErrNoSuchPurchase
	}
	p := rec.purchases[index]
	p.Refunded = rec.refunded[index]
	return p, nil
}

func (s *Store) PurchaseCount(_ context.Context, lotteryID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return 0, lottery.ErrNoSuchLottery
	}
	return len(rec.purchases), nil
}

func (s *Store) ListPurchases(_ context.Context, lotteryID int64) ([]lottery.PurchaseTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return nil, lottery.ErrNoSuchLottery
	}
	out := make([]lottery.PurchaseTx, len(rec.purchases))
	copy(out, rec.purchases)
	for i := range out {
		out[i].Refunded = rec.refunded[i]
	}
	return out, nil
}

func (s *Store) FindPurchase(_ context.Context, lotteryID, startTicketNo int64, quantity int) (lottery.PurchaseTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return lottery.PurchaseTx{}, lottery.ErrNoSuchLottery
	}
	for i, p := range rec.purchases {
		if p.StartTicketNo == startTicketNo && p.Quantity == quantity {
			p.Refunded = rec.refunded[i]
			return p, nil
		}
	}
	return lottery.PurchaseTx{}, lottery.ErrNoSuchPurchase
}

// MarkRevealed stores the secret and folds it into the aggregate seed under
// the same lock, so concurrent reveals can never lose a seed update.
func (s *Store) MarkRevealed(_ context.Context, lotteryID, startTicketNo int64, secret []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return lottery.ErrNoSuchLottery
	}
	for i := range rec.purchases {
		p := &rec.purchases[i]
		if p.StartTicketNo != startTicketNo {
			continue
		}
		if p.Revealed {
			return lottery.ErrAlreadyRevealed
		}
		p.Revealed = true
		p.RevealedSecret = append([]byte(nil), secret...)
		rec.lot.Seed = lottery.FoldSeed(rec.lot.Seed, secret)
		rec.lot.UpdatedAt = time.Now().UTC()
		return nil
	}
	return lottery.ErrNoSuchPurchase
}

func (s *Store) SetWinners(_ context.Context, lotteryID int64, winners []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return lottery.ErrNoSuchLottery
	}
	if rec.finalized {
		return nil
	}
	rec.winners = append([]int64(nil), winners...)
	rec.finalized = true
	rec.lot.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) GetWinners(_ context.Context, lotteryID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return nil, lottery.ErrNoSuchLottery
	}
	if !rec.finalized {
		return nil, lottery.ErrNotFinalized
	}
	return append([]int64(nil), rec.winners...), nil
}

func (s *Store) ClaimProceeds(_ context.Context, lotteryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return lottery.ErrNoSuchLottery
	}
	if rec.lot.ProceedsWithdrawn {
		return lottery.ErrAlreadyWithdrawn
	}
	rec.lot.ProceedsWithdrawn = true
	rec.lot.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ReleaseProceeds(_ context.Context, lotteryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return lottery.ErrNoSuchLottery
	}
	rec.lot.ProceedsWithdrawn = false
	rec.lot.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ClaimRefund(_ context.Context, lotteryID int64, purchaseIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return lottery.ErrNoSuchLottery
	}
	if purchaseIndex < 0 || purchaseIndex >= len(rec.purchases) {
		return lottery.ErrNoSuchPurchase
	}
	if rec.refunded[purchaseIndex] {
		return lottery.ErrAlreadyRefunded
	}
	rec.refunded[purchaseIndex] = true
	return nil
}

func (s *Store) ReleaseRefund(_ context.Context, lotteryID int64, purchaseIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[lotteryID]
	if !ok {
		return lottery.ErrNoSuchLottery
	}
	if purchaseIndex < 0 || purchaseIndex >= len(rec.purchases) {
		return lottery.ErrNoSuchPurchase
	}
	delete(rec.refunded, purchaseIndex)
	return nil
}

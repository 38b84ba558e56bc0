// Package draw selects winning tickets from the frozen aggregate seed once a
// lottery has ended.
package draw

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/events"
	"github.com/chainlot/lottery-engine/internal/metrics"
	"github.com/chainlot/lottery-engine/internal/storage"
	"github.com/chainlot/lottery-engine/pkg/logger"
)

// Service computes and serves winning sets.
type Service struct {
	store  storage.LotteryStore
	clock  lottery.Clock
	events events.Publisher
	log    *logger.Logger
}

// New constructs a winner-selection service.
func New(store storage.LotteryStore, clock lottery.Clock, pub events.Publisher, log *logger.Logger) *Service {
	if clock == nil {
		clock = lottery.SystemClock{}
	}
	if pub == nil {
		pub = events.NewRecorder()
	}
	if log == nil {
		log = logger.NewDefault("draw")
	}
	return &Service{store: store, clock: clock, events: pub, log: log}
}

// Finalize computes the winning ticket set of an ended, non-canceled lottery.
// Idempotent: once computed, the stored set is returned and never recomputed.
func (s *Service) Finalize(ctx context.Context, lotteryID int64) ([]int64, error) {
	return s.finalize(ctx, lotteryID, "manual")
}

func (s *Service) finalize(ctx context.Context, lotteryID int64, trigger string) ([]int64, error) {
	if winners, err := s.store.GetWinners(ctx, lotteryID); err == nil {
		return winners, nil
	} else if !errors.Is(err, lottery.ErrNotFinalized) {
		return nil, err
	}

	lot, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	if lot.PhaseAt(s.clock.Now()) != lottery.PhaseEnded {
		return nil, lottery.ErrNotEligible
	}
	if lot.Canceled() {
		return nil, lottery.ErrNotEligible
	}

	winners := selectWinners(lot.Seed, lot.TicketsSold, lot.WinnersCount)
	if len(winners) < lot.WinnersCount {
		s.log.WithField("lottery_id", lotteryID).
			WithField("tickets_sold", lot.TicketsSold).
			WithField("winners_count", lot.WinnersCount).
			Warn("fewer tickets sold than winners to draw; every ticket wins")
	}

	if err := s.store.SetWinners(ctx, lotteryID, winners); err != nil {
		return nil, fmt.Errorf("store winners: %w", err)
	}

	// Another caller may have won the race; the stored set is canonical.
	stored, err := s.store.GetWinners(ctx, lotteryID)
	if err != nil {
		return nil, err
	}

	s.log.WithField("lottery_id", lotteryID).
		WithField("winners", stored).
		Info("lottery finalized")
	metrics.RecordFinalized(trigger)
	s.events.Publish(events.TopicLotteryFinalized, lotteryID, map[string]any{
		"winners":      stored,
		"tickets_sold": lot.TicketsSold,
	})

	return stored, nil
}

// selectWinners derives distinct ticket numbers from the seed by linear
// probing over the hash stream. Deterministic for a fixed seed and sold
// count. When fewer tickets were sold than winners requested, every sold
// ticket wins.
func selectWinners(seed []byte, ticketsSold int64, winnersCount int) []int64 {
	want := int64(winnersCount)
	if want > ticketsSold {
		want = ticketsSold
	}

	winners := make([]int64, 0, want)
	chosen := make(map[int64]bool, want)
	for drawIndex := uint64(0); int64(len(winners)) < want; drawIndex++ {
		candidate := lottery.DrawCandidate(seed, drawIndex, ticketsSold)
		if chosen[candidate] {
			continue
		}
		chosen[candidate] = true
		winners = append(winners, candidate)
	}
	return winners
}

// IsWinner reports whether ticketNo is in the winning set.
func (s *Service) IsWinner(ctx context.Context, lotteryID, ticketNo int64) (bool, error) {
	winners, err := s.store.GetWinners(ctx, lotteryID)
	if err != nil {
		return false, err
	}
	for _, w := range winners {
		if w == ticketNo {
			return true, nil
		}
	}
	return false, nil
}

// WinningTicketAt returns the i-th winning ticket in draw order.
func (s *Service) WinningTicketAt(ctx context.Context, lotteryID int64, i int) (int64, error) {
	winners, err := s.store.GetWinners(ctx, lotteryID)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(winners) {
		return 0, fmt.Errorf("%w: winner index out of range", lottery.ErrInvalidParameters)
	}
	return winners[i], nil
}

// CheckAddrWon returns the winning ticket numbers owned by buyer, in
// ascending order. Empty when the buyer won nothing.
func (s *Service) CheckAddrWon(ctx context.Context, lotteryID int64, buyer string) ([]int64, error) {
	winners, err := s.store.GetWinners(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	purchases, err := s.store.ListPurchases(ctx, lotteryID)
	if err != nil {
		return nil, err
	}

	won := make([]int64, 0)
	for _, w := range winners {
		for _, p := range purchases {
			if p.Buyer == buyer && p.Covers(w) {
				won = append(won, w)
				break
			}
		}
	}
	sort.Slice(won, func(i, j int) bool { return won[i] < won[j] })
	return won, nil
}

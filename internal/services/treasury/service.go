// Package treasury settles funds once a lottery ends: proceeds to the
// operator on success, refunds to buyers on cancellation.
package treasury

import (
	"context"
	"fmt"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/events"
	"github.com/chainlot/lottery-engine/internal/metrics"
	"github.com/chainlot/lottery-engine/internal/storage"
	"github.com/chainlot/lottery-engine/internal/token"
	"github.com/chainlot/lottery-engine/pkg/logger"
)

// Service authorizes proceeds withdrawal and refunds.
type Service struct {
	store    storage.LotteryStore
	tokens   *token.Holder
	operator string
	clock    lottery.Clock
	events   events.Publisher
	log      *logger.Logger
}

// New constructs a treasury service.
func New(store storage.LotteryStore, tokens *token.Holder, operator string, clock lottery.Clock, pub events.Publisher, log *logger.Logger) *Service {
	if clock == nil {
		clock = lottery.SystemClock{}
	}
	if pub == nil {
		pub = events.NewRecorder()
	}
	if log == nil {
		log = logger.NewDefault("treasury")
	}
	return &Service{store: store, tokens: tokens, operator: operator, clock: clock, events: pub, log: log}
}

// WithdrawProceeds pays the full sales amount of an ended, non-canceled
// lottery to the operator. Single-shot per lottery.
func (s *Service) WithdrawProceeds(ctx context.Context, lotteryID int64, caller string) (int64, error) {
	if caller != s.operator {
		return 0, lottery.ErrNotAuthorized
	}

	lot, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return 0, err
	}
	if lot.PhaseAt(s.clock.Now()) != lottery.PhaseEnded || lot.Canceled() {
		return 0, lottery.ErrNotEligible
	}

	tok := s.tokens.Get()
	if tok == nil {
		return 0, lottery.ErrPaymentTokenNotSet
	}

	// Claiming the flag first makes the withdrawal exclusive; the transfer
	// failure path releases it so the operator can retry.
	if err := s.store.ClaimProceeds(ctx, lotteryID); err != nil {
		return 0, err
	}

	amount := lot.Proceeds()
	if err := tok.Transfer(ctx, s.operator, amount); err != nil {
		if releaseErr := s.store.ReleaseProceeds(ctx, lotteryID); releaseErr != nil {
			s.log.WithError(releaseErr).WithField("lottery_id", lotteryID).
				Error("failed to release proceeds claim after transfer failure")
		}
		return 0, fmt.Errorf("proceeds transfer: %w", err)
	}

	s.log.WithField("lottery_id", lotteryID).
		WithField("amount", amount).
		Info("proceeds withdrawn")
	metrics.RecordWithdrawal("proceeds")
	s.events.Publish(events.TopicProceedsWithdrawn, lotteryID, map[string]any{
		"operator": s.operator,
		"amount":   amount,
	})

	return amount, nil
}

// WithdrawRefund returns the purchase amount of one purchase of a canceled
// lottery to its buyer. Single-shot per purchase.
func (s *Service) WithdrawRefund(ctx context.Context, lotteryID int64, purchaseIndex int, buyer string) (int64, error) {
	lot, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return 0, err
	}
	if lot.PhaseAt(s.clock.Now()) != lottery.PhaseEnded || !lot.Canceled() {
		return 0, lottery.ErrLotteryNotCanceled
	}

	p, err := s.store.GetPurchase(ctx, lotteryID, purchaseIndex)
	if err != nil {
		return 0, err
	}
	if p.Buyer != buyer {
		return 0, lottery.ErrNotOwner
	}

	tok := s.tokens.Get()
	if tok == nil {
		return 0, lottery.ErrPaymentTokenNotSet
	}

	if err := s.store.ClaimRefund(ctx, lotteryID, purchaseIndex); err != nil {
		return 0, err
	}

	amount := int64(p.Quantity) * lot.TicketPrice
	if err := tok.Transfer(ctx, buyer, amount); err != nil {
		if releaseErr := s.store.ReleaseRefund(ctx, lotteryID, purchaseIndex); releaseErr != nil {
			s.log.WithError(releaseErr).WithField("lottery_id", lotteryID).
				Error("failed to release refund claim after transfer failure")
		}
		return 0, fmt.Errorf("refund transfer: %w", err)
	}

	s.log.WithField("lottery_id", lotteryID).
		WithField("purchase_index", purchaseIndex).
		WithField("buyer", buyer).
		WithField("amount", amount).
		Info("refund withdrawn")
	metrics.RecordWithdrawal("refund")
	s.events.Publish(events.TopicRefundWithdrawn, lotteryID, map[string]any{
		"buyer":          buyer,
		"purchase_index": purchaseIndex,
		"amount":         amount,
	})

	return amount, nil
}

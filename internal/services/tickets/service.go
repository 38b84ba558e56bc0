// Package tickets is the ticket-accounting ledger: it allocates contiguous
// numbered ranges to buyers and is the source of truth for ticket ownership.
package tickets

import (
	"context"
	"fmt"
	"sort"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/events"
	"github.com/chainlot/lottery-engine/internal/metrics"
	"github.com/chainlot/lottery-engine/internal/storage"
	"github.com/chainlot/lottery-engine/internal/token"
	"github.com/chainlot/lottery-engine/pkg/logger"
)

// Service sells tickets and answers ownership queries.
type Service struct {
	store   storage.LotteryStore
	tokens  *token.Holder
	custody string
	clock   lottery.Clock
	events  events.Publisher
	log     *logger.Logger
}

// New constructs a ticket ledger service. Incoming ticket payments land on
// the custody account.
func New(store storage.LotteryStore, tokens *token.Holder, custody string, clock lottery.Clock, pub events.Publisher, log *logger.Logger) *Service {
	if clock == nil {
		clock = lottery.SystemClock{}
	}
	if pub == nil {
		pub = events.NewRecorder()
	}
	if log == nil {
		log = logger.NewDefault("tickets")
	}
	return &Service{store: store, tokens: tokens, custody: custody, clock: clock, events: pub, log: log}
}

// BuyTickets sells quantity tickets to buyer against the committed hash and
// returns the first allocated ticket number. Purchases are accepted until the
// lottery's end time; the payment transfer must succeed before any ledger
// state changes.
func (s *Service) BuyTickets(ctx context.Context, lotteryID int64, quantity int, committedHash []byte, buyer string) (int64, error) {
	if quantity < 1 || quantity > lottery.MaxTicketsPerPurchase {
		return 0, lottery.ErrInvalidQuantity
	}
	if buyer == "" {
		return 0, fmt.Errorf("%w: buyer is required", lottery.ErrInvalidParameters)
	}
	if len(committedHash) == 0 {
		return 0, fmt.Errorf("%w: committed hash is required", lottery.ErrInvalidParameters)
	}

	lot, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return 0, err
	}
	if lot.PhaseAt(s.clock.Now()) == lottery.PhaseEnded {
		return 0, lottery.ErrLotteryEnded
	}

	tok := s.tokens.Get()
	if tok == nil {
		return 0, lottery.ErrPaymentTokenNotSet
	}

	cost := int64(quantity) * lot.TicketPrice
	if err := tok.TransferFrom(ctx, buyer, s.custody, cost); err != nil {
		return 0, fmt.Errorf("ticket payment: %w", err)
	}

	created, err := s.store.AppendPurchase(ctx, lottery.PurchaseTx{
		LotteryID:     lotteryID,
		Buyer:         buyer,
		Quantity:      quantity,
		CommittedHash: append([]byte(nil), committedHash...),
		PurchasedAt:   s.clock.Now(),
	})
	if err != nil {
		// The payment went through but the ledger rejected the purchase.
		// Send the funds back so the caller observes a clean abort.
		if refundErr := tok.Transfer(ctx, buyer, cost); refundErr != nil {
			s.log.WithError(refundErr).
				WithField("lottery_id", lotteryID).
				WithField("buyer", buyer).
				Error("failed to return payment after ledger error")
		}
		return 0, fmt.Errorf("record purchase: %w", err)
	}

	s.log.WithField("lottery_id", lotteryID).
		WithField("buyer", buyer).
		WithField("start_ticket_no", created.StartTicketNo).
		WithField("quantity", quantity).
		Info("tickets purchased")
	metrics.RecordTicketsSold(quantity)
	s.events.Publish(events.TopicTicketPurchased, lotteryID, map[string]any{
		"buyer":           buyer,
		"start_ticket_no": created.StartTicketNo,
		"quantity":        quantity,
		"amount":          cost,
	})

	return created.StartTicketNo, nil
}

// GetPurchase returns the index-th purchase of a lottery. Insertion order is
// ticket-number order.
func (s *Service) GetPurchase(ctx context.Context, lotteryID int64, index int) (lottery.PurchaseTx, error) {
	return s.store.GetPurchase(ctx, lotteryID, index)
}

// PurchaseCount returns the number of purchase transactions of a lottery.
func (s *Service) PurchaseCount(ctx context.Context, lotteryID int64) (int, error) {
	return s.store.PurchaseCount(ctx, lotteryID)
}

// TicketOwner resolves the buyer holding ticketNo.
func (s *Service) TicketOwner(ctx context.Context, lotteryID, ticketNo int64) (string, error) {
	lot, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return "", err
	}
	if ticketNo < 0 || ticketNo >= lot.TicketsSold {
		return "", lottery.ErrNoSuchTicket
	}

	purchases, err := s.store.ListPurchases(ctx, lotteryID)
	if err != nil {
		return "", err
	}

	// Ranges are contiguous and sorted by construction, so binary search on
	// the range start locates the owning purchase.
	i := sort.Search(len(purchases), func(i int) bool {
		return purchases[i].StartTicketNo+int64(purchases[i].Quantity) > ticketNo
	})
	if i >= len(purchases) || !purchases[i].Covers(ticketNo) {
		return "", lottery.ErrNoSuchTicket
	}
	return purchases[i].Buyer, nil
}

// PurchasesOf returns all purchases of a lottery belonging to buyer.
func (s *Service) PurchasesOf(ctx context.Context, lotteryID int64, buyer string) ([]lottery.PurchaseTx, error) {
	purchases, err := s.store.ListPurchases(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	var out []lottery.PurchaseTx
	for _, p := range purchases {
		if p.Buyer == buyer {
			out = append(out, p)
		}
	}
	return out, nil
}

// Package reveal runs the commit-reveal protocol: it validates disclosed
// secrets against purchase-time commitments and aggregates them into each
// lottery's random seed.
package reveal

import (
	"context"
	"encoding/hex"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/events"
	"github.com/chainlot/lottery-engine/internal/metrics"
	"github.com/chainlot/lottery-engine/internal/storage"
	"github.com/chainlot/lottery-engine/pkg/logger"
)

// Service accepts secret reveals for purchased tickets.
type Service struct {
	store  storage.LotteryStore
	clock  lottery.Clock
	events events.Publisher
	log    *logger.Logger
}

// New constructs a reveal service.
func New(store storage.LotteryStore, clock lottery.Clock, pub events.Publisher, log *logger.Logger) *Service {
	if clock == nil {
		clock = lottery.SystemClock{}
	}
	if pub == nil {
		pub = events.NewRecorder()
	}
	if log == nil {
		log = logger.NewDefault("reveal")
	}
	return &Service{store: store, clock: clock, events: pub, log: log}
}

// Reveal discloses the secret behind the purchase identified by
// (lotteryID, startTicketNo, quantity) and folds it into the lottery's
// aggregate seed. Anyone holding the matching secret may call it; keeping the
// secret private until reveal is the buyer's responsibility.
//
// Reveals close at the lottery's end time, which freezes the seed before
// winner selection can run.
func (s *Service) Reveal(ctx context.Context, lotteryID, startTicketNo int64, quantity int, secret []byte) error {
	lot, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return err
	}
	if lot.PhaseAt(s.clock.Now()) == lottery.PhaseEnded {
		return lottery.ErrRevealWindowClosed
	}

	p, err := s.store.FindPurchase(ctx, lotteryID, startTicketNo, quantity)
	if err != nil {
		return err
	}
	if p.Revealed {
		return lottery.ErrAlreadyRevealed
	}
	if !lottery.MatchesCommitment(secret, p.CommittedHash) {
		return lottery.ErrHashMismatch
	}

	if err := s.store.MarkRevealed(ctx, lotteryID, startTicketNo, secret); err != nil {
		return err
	}

	s.log.WithField("lottery_id", lotteryID).
		WithField("start_ticket_no", startTicketNo).
		WithField("quantity", quantity).
		Info("secret revealed")
	metrics.RecordSecretRevealed()
	s.events.Publish(events.TopicSecretRevealed, lotteryID, map[string]any{
		"start_ticket_no": startTicketNo,
		"quantity":        quantity,
		"secret":          hex.EncodeToString(secret),
	})

	return nil
}

// Seed returns the current aggregate seed of a lottery. Empty until the
// first reveal.
func (s *Service) Seed(ctx context.Context, lotteryID int64) ([]byte, error) {
	lot, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	return lot.Seed, nil
}

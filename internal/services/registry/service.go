// Package registry owns lottery metadata and the time-derived phase state.
package registry

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

// Service creates lotteries and answers phase and cancellation queries.
type Service struct {
	store    storage.LotteryStore
	tokens   *token.Holder
	operator string
	clock    lottery.Clock
	events   events.Publisher
	log      *logger.Logger
}

// New constructs a registry service. The operator identity gates every
// administrative call.
func New(store storage.LotteryStore, tokens *token.Holder, operator string, clock lottery.Clock, pub events.Publisher, log *logger.Logger) *Service {
	if clock == nil {
		clock = lottery.SystemClock{}
	}
	if pub == nil {
		pub = events.NewRecorder()
	}
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{store: store, tokens: tokens, operator: operator, clock: clock, events: pub, log: log}
}

// CreateLottery registers a new lottery and returns its sequential ID.
// Operator only.
func (s *Service) CreateLottery(ctx context.Context, caller string, params lottery.CreateParams) (int64, error) {
	if caller != s.operator {
		return 0, lottery.ErrNotAuthorized
	}

	now := s.clock.Now()
	if !params.EndTime.After(now) {
		return 0, lottery.ErrInvalidSchedule
	}
	if params.TotalTicketCap < 1 {
		return 0, fmt.Errorf("%w: total ticket cap must be positive", lottery.ErrInvalidParameters)
	}
	if params.WinnersCount < 1 {
		return 0, fmt.Errorf("%w: winners count must be at least 1", lottery.ErrInvalidParameters)
	}
	if int64(params.WinnersCount) > params.TotalTicketCap {
		return 0, fmt.Errorf("%w: winners count exceeds ticket cap", lottery.ErrInvalidParameters)
	}
	if params.MinSalePercentage < 1 || params.MinSalePercentage > 100 {
		return 0, fmt.Errorf("%w: min sale percentage must be in [1,100]", lottery.ErrInvalidParameters)
	}
	if params.TicketPrice == 0 {
		return 0, fmt.Errorf("%w: ticket price must be non-zero", lottery.ErrInvalidParameters)
	}

	created, err := s.store.CreateLottery(ctx, lottery.Lottery{
		StartTime:         now,
		EndTime:           params.EndTime,
		TotalTicketCap:    params.TotalTicketCap,
		WinnersCount:      params.WinnersCount,
		MinSalePercentage: params.MinSalePercentage,
		TicketPrice:       params.TicketPrice,
		DescHash:          params.DescHash,
		DescURL:           params.DescURL,
	})
	if err != nil {
		return 0, fmt.Errorf("create lottery: %w", err)
	}

	s.log.WithField("lottery_id", created.ID).
		WithField("end_time", created.EndTime).
		WithField("winners_count", created.WinnersCount).
		Info("lottery created")
	metrics.RecordLotteryCreated()
	s.events.Publish(events.TopicLotteryCreated, created.ID, map[string]any{
		"end_time":            created.EndTime,
		"total_ticket_cap":    created.TotalTicketCap,
		"winners_count":       created.WinnersCount,
		"min_sale_percentage": created.MinSalePercentage,
		"ticket_price":        created.TicketPrice,
	})

	return created.ID, nil
}

// SetPaymentToken installs the process-wide payment asset. Operator only,
// expected before the first purchase.
func (s *Service) SetPaymentToken(_ context.Context, caller string, tok token.Token) error {
	if caller != s.operator {
		return lottery.ErrNotAuthorized
	}
	s.tokens.Set(tok)
	s.log.WithField("token_id", tok.ID()).Info("payment token configured")
	s.events.Publish(events.TopicPaymentTokenSet, 0, map[string]any{"token_id": tok.ID()})
	return nil
}

// GetLottery returns the stored lottery record.
func (s *Service) GetLottery(ctx context.Context, id int64) (lottery.Lottery, error) {
	return s.store.GetLottery(ctx, id)
}

// CurrentLotteryID returns the most recently assigned lottery ID, 0 when no
// lottery exists yet.
func (s *Service) CurrentLotteryID(ctx context.Context) (int64, error) {
	return s.store.CurrentLotteryID(ctx)
}

// GetPhase derives the lottery's phase from its stored times and the clock.
func (s *Service) GetPhase(ctx context.Context, id int64) (lottery.Phase, error) {
	lot, err := s.store.GetLottery(ctx, id)
	if err != nil {
		return 0, err
	}
	return lot.PhaseAt(s.clock.Now()), nil
}

// IsCanceled reports the cancellation outcome. Only defined once the lottery
// has ended; before that the sold count is still moving and the call fails
// with ErrNotEligible.
func (s *Service) IsCanceled(ctx context.Context, id int64) (bool, error) {
	lot, err := s.store.GetLottery(ctx, id)
	if err != nil {
		return false, err
	}
	if lot.PhaseAt(s.clock.Now()) != lottery.PhaseEnded {
		return false, lottery.ErrNotEligible
	}
	return lot.Canceled(), nil
}

// LotterySales returns the number of tickets sold so far.
func (s *Service) LotterySales(ctx context.Context, id int64) (int64, error) {
	lot, err := s.store.GetLottery(ctx, id)
	if err != nil {
		return 0, err
	}
	return lot.TicketsSold, nil
}

// LotteryURL returns the opaque description metadata.
func (s *Service) LotteryURL(ctx context.Context, id int64) (descHash, descURL string, err error) {
	lot, err := s.store.GetLottery(ctx, id)
	if err != nil {
		return "", "", err
	}
	return lot.DescHash, lot.DescURL, nil
}

// Operator returns the configured operator identity.
func (s *Service) Operator() string { return s.operator }

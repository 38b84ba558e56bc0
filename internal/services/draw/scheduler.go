package draw

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/storage"
	"github.com/chainlot/lottery-engine/pkg/logger"
)

// Scheduler finalizes ended lotteries on a cron schedule so winners become
// available without anyone calling Finalize by hand.
type Scheduler struct {
	store    storage.LotteryStore
	service  *Service
	clock    lottery.Clock
	schedule string
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler creates a scheduler running at the given cron spec
// (e.g. "@every 1m").
func NewScheduler(store storage.LotteryStore, service *Service, clock lottery.Clock, schedule string, log *logger.Logger) *Scheduler {
	if clock == nil {
		clock = lottery.SystemClock{}
	}
	if log == nil {
		log = logger.NewDefault("draw-scheduler")
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Scheduler{store: store, service: service, clock: clock, schedule: schedule, log: log}
}

// Start begins the periodic sweep. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.sweep(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.running = true

	s.log.WithField("schedule", s.schedule).Info("draw scheduler started")
	return nil
}

// Stop halts the sweep and waits for a running iteration to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.log.Info("draw scheduler stopped")
	}
}

// sweep finalizes every ended, non-canceled, not-yet-finalized lottery.
func (s *Scheduler) sweep(ctx context.Context) {
	current, err := s.store.CurrentLotteryID(ctx)
	if err != nil {
		s.log.WithError(err).Warn("sweep: current lottery id")
		return
	}

	now := s.clock.Now()
	for id := int64(1); id <= current; id++ {
		lot, err := s.store.GetLottery(ctx, id)
		if err != nil {
			continue
		}
		if lot.PhaseAt(now) != lottery.PhaseEnded || lot.Canceled() {
			continue
		}
		if _, err := s.store.GetWinners(ctx, id); !errors.Is(err, lottery.ErrNotFinalized) {
			continue
		}
		if _, err := s.service.finalize(ctx, id, "scheduled"); err != nil {
			s.log.WithError(err).WithField("lottery_id", id).Warn("scheduled finalize failed")
		}
	}
}

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/events"
	"github.com/chainlot/lottery-engine/internal/storage/memory"
	"github.com/chainlot/lottery-engine/internal/token"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newService(t *testing.T) (*Service, *memory.Store, *fakeClock, *events.Recorder) {
	t.Helper()
	store := memory.New()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := events.NewRecorder()
	return New(store, &token.Holder{}, "operator", clock, rec, nil), store, clock, rec
}

func validParams(clock *fakeClock) lottery.CreateParams {
	return lottery.CreateParams{
		EndTime:           clock.now.Add(2 * time.Hour),
		TotalTicketCap:    100,
		WinnersCount:      3,
		MinSalePercentage: 50,
		TicketPrice:       5,
	}
}

func TestCreateLottery(t *testing.T) {
	svc, _, clock, rec := newService(t)
	ctx := context.Background()

	id, err := svc.CreateLottery(ctx, "operator", validParams(clock))
	if err != nil {
		t.Fatalf("CreateLottery: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	lot, err := svc.GetLottery(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !lot.StartTime.Equal(clock.now) {
		t.Error("start time should be the creation instant")
	}
	if len(rec.ByTopic(events.TopicLotteryCreated)) != 1 {
		t.Error("creation event not published")
	}
}

func TestCreateLotteryValidation(t *testing.T) {
	svc, _, clock, _ := newService(t)
	ctx := context.Background()

	t.Run("not operator", func(t *testing.T) {
		_, err := svc.CreateLottery(ctx, "mallory", validParams(clock))
		if !errors.Is(err, lottery.ErrNotAuthorized) {
			t.Fatalf("err = %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("end time in the past", func(t *testing.T) {
		p := validParams(clock)
		p.EndTime = clock.now.Add(-time.Minute)
		if _, err := svc.CreateLottery(ctx, "operator", p); !errors.Is(err, lottery.ErrInvalidSchedule) {
			t.Fatalf("err = %v, want ErrInvalidSchedule", err)
		}
	})

	t.Run("end time equals now", func(t *testing.T) {
		p := validParams(clock)
		p.EndTime = clock.now
		if _, err := svc.CreateLottery(ctx, "operator", p); !errors.Is(err, lottery.ErrInvalidSchedule) {
			t.Fatalf("err = %v, want ErrInvalidSchedule", err)
		}
	})

	t.Run("zero ticket cap", func(t *testing.T) {
		p := validParams(clock)
		p.TotalTicketCap = 0
		if _, err := svc.CreateLottery(ctx, "operator", p); !errors.Is(err, lottery.ErrInvalidParameters) {
			t.Fatalf("err = %v, want ErrInvalidParameters", err)
		}
	})

	t.Run("winners exceed cap", func(t *testing.T) {
		p := validParams(clock)
		p.WinnersCount = 101
		if _, err := svc.CreateLottery(ctx, "operator", p); !errors.Is(err, lottery.ErrInvalidParameters) {
			t.Fatalf("err = %v, want ErrInvalidParameters", err)
		}
	})

	t.Run("percentage out of range", func(t *testing.T) {
		for _, pct := range []int{0, 101} {
			p := validParams(clock)
			p.MinSalePercentage = pct
			if _, err := svc.CreateLottery(ctx, "operator", p); !errors.Is(err, lottery.ErrInvalidParameters) {
				t.Fatalf("pct %d: err = %v, want ErrInvalidParameters", pct, err)
			}
		}
	})

	t.Run("zero ticket price", func(t *testing.T) {
		p := validParams(clock)
		p.TicketPrice = 0
		if _, err := svc.CreateLottery(ctx, "operator", p); !errors.Is(err, lottery.ErrInvalidParameters) {
			t.Fatalf("err = %v, want ErrInvalidParameters", err)
		}
	})
}

func TestGetPhaseTracksClock(t *testing.T) {
	svc, _, clock, _ := newService(t)
	ctx := context.Background()

	id, err := svc.CreateLottery(ctx, "operator", validParams(clock))
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		advance time.Duration
		want    lottery.Phase
	}{
		{0, lottery.PhasePurchase},
		{time.Hour, lottery.PhaseReveal},
		{2 * time.Hour, lottery.PhaseEnded},
	}
	start := clock.now
	for _, step := range steps {
		clock.now = start.Add(step.advance)
		phase, err := svc.GetPhase(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if phase != step.want {
			t.Fatalf("at +%v phase = %v, want %v", step.advance, phase, step.want)
		}
	}
}

func TestIsCanceledOnlyAfterEnd(t *testing.T) {
	svc, _, clock, _ := newService(t)
	ctx := context.Background()

	id, err := svc.CreateLottery(ctx, "operator", validParams(clock))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.IsCanceled(ctx, id); !errors.Is(err, lottery.ErrNotEligible) {
		t.Fatalf("before end: err = %v, want ErrNotEligible", err)
	}

	clock.now = clock.now.Add(3 * time.Hour)
	canceled, err := svc.IsCanceled(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !canceled {
		t.Error("zero sales should cancel")
	}
}

func TestSetPaymentToken(t *testing.T) {
	store := memory.New()
	tokens := &token.Holder{}
	clock := &fakeClock{now: time.Now().UTC()}
	svc := New(store, tokens, "operator", clock, events.NewRecorder(), nil)
	bank := token.NewBank("bank", "custody")

	if err := svc.SetPaymentToken(context.Background(), "mallory", bank); !errors.Is(err, lottery.ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
	if tokens.Get() != nil {
		t.Fatal("token should not be set by unauthorized caller")
	}

	if err := svc.SetPaymentToken(context.Background(), "operator", bank); err != nil {
		t.Fatal(err)
	}
	if tokens.Get() == nil {
		t.Fatal("token not installed")
	}
}

func TestLotteryURL(t *testing.T) {
	svc, _, clock, _ := newService(t)
	ctx := context.Background()

	p := validParams(clock)
	p.DescHash = "abc123"
	p.DescURL = "https://example.com/rules"
	id, err := svc.CreateLottery(ctx, "operator", p)
	if err != nil {
		t.Fatal(err)
	}

	hash, url, err := svc.LotteryURL(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if hash != "abc123" || url != "https://example.com/rules" {
		t.Fatalf("got %q %q", hash, url)
	}
}

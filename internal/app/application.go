// Package app wires the engine's store, services and dispatch surface into
// one runnable unit.
package app

import (
	"fmt"

	"github.com/chainlot/lottery-engine/internal/dispatch"
	"github.com/chainlot/lottery-engine/internal/domain/lottery"
	"github.com/chainlot/lottery-engine/internal/events"
	"github.com/chainlot/lottery-engine/internal/services/draw"
	"github.com/chainlot/lottery-engine/internal/services/registry"
	"github.com/chainlot/lottery-engine/internal/services/reveal"
	"github.com/chainlot/lottery-engine/internal/services/tickets"
	"github.com/chainlot/lottery-engine/internal/services/treasury"
	"github.com/chainlot/lottery-engine/internal/storage"
	"github.com/chainlot/lottery-engine/internal/storage/memory"
	"github.com/chainlot/lottery-engine/internal/token"
	"github.com/chainlot/lottery-engine/pkg/logger"
)

// Options configures an Application.
type Options struct {
	// Operator is the identity allowed to create lotteries, configure the
	// payment token and withdraw proceeds.
	Operator string
	// Custody is the account holding ticket payments until settlement.
	Custody string
	// FinalizeSchedule is the cron spec of the auto-finalizer sweep.
	FinalizeSchedule string
	// Modules restricts which dispatch modules get installed. Empty means
	// all of them.
	Modules []string

	Store  storage.LotteryStore
	Clock  lottery.Clock
	Events events.Publisher
	Log    *logger.Logger

	// ResolveToken maps a token identifier from a setPaymentToken call to a
	// concrete asset adapter.
	ResolveToken func(id string) (token.Token, error)
}

// Application ties the engine services together and owns their dispatch
// surface.
type Application struct {
	log    *logger.Logger
	events events.Publisher

	Store      storage.LotteryStore
	Tokens     *token.Holder
	Registry   *registry.Service
	Tickets    *tickets.Service
	Reveal     *reveal.Service
	Draw       *draw.Service
	Treasury   *treasury.Service
	Scheduler  *draw.Scheduler
	Dispatcher *dispatch.Dispatcher

	resolveToken func(id string) (token.Token, error)
}

// ResolveToken maps a token identifier to its configured asset adapter.
func (a *Application) ResolveToken(id string) (token.Token, error) {
	return a.resolveToken(id)
}

// New builds a fully initialised application. A nil store defaults to the
// in-memory implementation.
func New(opts Options) (*Application, error) {
	if opts.Operator == "" {
		return nil, fmt.Errorf("operator identity is required")
	}
	if opts.Custody == "" {
		opts.Custody = "engine-custody"
	}
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	if opts.Clock == nil {
		opts.Clock = lottery.SystemClock{}
	}
	if opts.Events == nil {
		opts.Events = events.NewBus()
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefault("lottery-engine")
	}
	if opts.ResolveToken == nil {
		opts.ResolveToken = func(id string) (token.Token, error) {
			return nil, fmt.Errorf("no token adapter for %q", id)
		}
	}

	tokens := &token.Holder{}
	drawSvc := draw.New(opts.Store, opts.Clock, opts.Events, opts.Log.WithField("component", "draw"))

	a := &Application{
		log:          opts.Log,
		events:       opts.Events,
		Store:        opts.Store,
		Tokens:       tokens,
		Registry:     registry.New(opts.Store, tokens, opts.Operator, opts.Clock, opts.Events, opts.Log.WithField("component", "registry")),
		Tickets:      tickets.New(opts.Store, tokens, opts.Custody, opts.Clock, opts.Events, opts.Log.WithField("component", "tickets")),
		Reveal:       reveal.New(opts.Store, opts.Clock, opts.Events, opts.Log.WithField("component", "reveal")),
		Draw:         drawSvc,
		Treasury:     treasury.New(opts.Store, tokens, opts.Operator, opts.Clock, opts.Events, opts.Log.WithField("component", "treasury")),
		Scheduler:    draw.NewScheduler(opts.Store, drawSvc, opts.Clock, opts.FinalizeSchedule, opts.Log.WithField("component", "draw-scheduler")),
		Dispatcher:   dispatch.New(opts.Log.WithField("component", "dispatch")),
		resolveToken: opts.ResolveToken,
	}

	enabled := opts.Modules
	if len(enabled) == 0 {
		enabled = ModuleNames()
	}
	for _, name := range enabled {
		mod, err := a.buildModule(name)
		if err != nil {
			return nil, err
		}
		if err := a.Dispatcher.Install(mod); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Package dispatch routes named engine operations to their current handlers.
// Operations are grouped into modules that install and swap atomically,
// mirroring how the on-chain deployment of this protocol routes calls
// through upgradeable facets. The engine itself imposes no constraint beyond
// "one current implementation per operation name".
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chainlot/lottery-engine/pkg/logger"
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrUnknownModule    = errors.New("unknown module")
	ErrOperationTaken   = errors.New("operation already routed")
)

// Request carries the caller identity and loosely-typed parameters of one
// dispatched call.
type Request struct {
	Caller string
	Params map[string]any
}

// Handler executes one operation.
type Handler func(ctx context.Context, req Request) (any, error)

// Module is a named group of operations installed together.
type Module struct {
	Name       string
	Operations map[string]Handler
}

type route struct {
	module  string
	handler Handler
}

// Dispatcher routes operation names to handlers.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[string]route
	log    *logger.Logger
}

// New creates an empty dispatcher.
func New(log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewDefault("dispatch")
	}
	return &Dispatcher{routes: make(map[string]route), log: log}
}

// Install adds a module. All-or-nothing: if any operation name is already
// routed, nothing is installed.
func (d *Dispatcher) Install(mod Module) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for op := range mod.Operations {
		if existing, ok := d.routes[op]; ok {
			return fmt.Errorf("%w: %s (module %s)", ErrOperationTaken, op, existing.module)
		}
	}
	for op, h := range mod.Operations {
		d.routes[op] = route{module: mod.Name, handler: h}
	}
	d.log.WithField("module", mod.Name).
		WithField("operations", len(mod.Operations)).
		Info("module installed")
	return nil
}

// Replace atomically swaps out the named module's operations for the new
// set. Operations owned by other modules are untouched.
func (d *Dispatcher) Replace(mod Module) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var old []string
	for op, r := range d.routes {
		if r.module == mod.Name {
			old = append(old, op)
		}
	}
	if len(old) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownModule, mod.Name)
	}
	// Validate before mutating so a collision leaves the old module intact.
	for op := range mod.Operations {
		if existing, ok := d.routes[op]; ok && existing.module != mod.Name {
			return fmt.Errorf("%w: %s (module %s)", ErrOperationTaken, op, existing.module)
		}
	}
	for _, op := range old {
		delete(d.routes, op)
	}
	for op, h := range mod.Operations {
		d.routes[op] = route{module: mod.Name, handler: h}
	}
	d.log.WithField("module", mod.Name).Info("module replaced")
	return nil
}

// Remove uninstalls a module and all its operations.
func (d *Dispatcher) Remove(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := false
	for op, r := range d.routes {
		if r.module == name {
			delete(d.routes, op)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	d.log.WithField("module", name).Info("module removed")
	return nil
}

// Call routes the operation to its current handler.
func (d *Dispatcher) Call(ctx context.Context, op string, req Request) (any, error) {
	d.mu.RLock()
	r, ok := d.routes[op]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return r.handler(ctx, req)
}

// ModuleOf reports which module currently serves an operation.
func (d *Dispatcher) ModuleOf(op string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.routes[op]
	return r.module, ok
}

// Operations lists all routed operation names.
func (d *Dispatcher) Operations() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.routes))
	for op := range d.routes {
		out = append(out, op)
	}
	return out
}

// Package token defines the fungible payment-asset boundary. The engine only
// needs transfer semantics; balances, allowances and settlement belong to the
// asset itself.
package token

import (
	"context"
	"errors"
	"sync"
)

// Transfer errors surfaced by implementations.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownAccount        = errors.New("unknown account")
)

// Token is the fungible payment asset consumed by the engine. Any transfer
// error aborts the calling engine operation with no state change.
type Token interface {
	// ID identifies the configured asset (e.g. a contract hash).
	ID() string
	// TransferFrom moves amount from an owner who previously granted the
	// engine an allowance.
	TransferFrom(ctx context.Context, from, to string, amount int64) error
	// Transfer moves amount out of the engine's custody account.
	Transfer(ctx context.Context, to string, amount int64) error
	// BalanceOf reports the current balance of an account.
	BalanceOf(ctx context.Context, account string) (int64, error)
}

// Holder stores the process-wide payment token, set once by the operator
// before the first purchase.
type Holder struct {
	mu  sync.RWMutex
	tok Token
}

// Set installs or replaces the payment token.
func (h *Holder) Set(tok Token) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tok = tok
}

// Get returns the configured token, or nil when unset.
func (h *Holder) Get() Token {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tok
}

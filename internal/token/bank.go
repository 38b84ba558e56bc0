package token

import (
	"context"
	"sync"
)

// Bank is an in-process Token with balances and allowances. It backs tests
// and local runs; production deployments plug in the real asset adapter.
type Bank struct {
	id      string
	custody string

	mu         sync.Mutex
	balances   map[string]int64
	allowances map[string]map[string]int64 // owner -> spender -> amount
}

var _ Token = (*Bank)(nil)

// NewBank creates a bank whose custody account receives incoming transfers
// and funds outgoing ones.
func NewBank(id, custody string) *Bank {
	return &Bank{
		id:         id,
		custody:    custody,
		balances:   make(map[string]int64),
		allowances: make(map[string]map[string]int64),
	}
}

func (b *Bank) ID() string { return b.id }

// Mint credits an account. Test setup helper.
func (b *Bank) Mint(account string, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] += amount
}

// Approve grants the spender an allowance over the owner's balance.
func (b *Bank) Approve(owner, spender string, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allowances[owner] == nil {
		b.allowances[owner] = make(map[string]int64)
	}
	b.allowances[owner][spender] = amount
}

func (b *Bank) TransferFrom(_ context.Context, from, to string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allowances[from][b.custody] < amount {
		return ErrInsufficientAllowance
	}
	if b.balances[from] < amount {
		return ErrInsufficientFunds
	}
	b.allowances[from][b.custody] -= amount
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

func (b *Bank) Transfer(_ context.Context, to string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[b.custody] < amount {
		return ErrInsufficientFunds
	}
	b.balances[b.custody] -= amount
	b.balances[to] += amount
	return nil
}

func (b *Bank) BalanceOf(_ context.Context, account string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account], nil
}

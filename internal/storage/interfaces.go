// Package storage defines the persistence boundary of the lottery engine.
package storage

import (
	"context"

	"github.com/chainlot/lottery-engine/internal/domain/lottery"
)

// LotteryStore persists lotteries, their purchase ledger and their outcomes.
//
// Implementations must apply each method atomically: ticket-range allocation,
// seed folding and the withdrawn/refunded flags are single indivisible steps,
// so no interleaving of valid calls can produce overlapping ranges, lost seed
// updates or double withdrawals.
type LotteryStore interface {
	// Lottery records
	CreateLottery(ctx context.Context, lot lottery.Lottery) (lottery.Lottery, error)
	GetLottery(ctx context.Context, id int64) (lottery.Lottery, error)
	CurrentLotteryID(ctx context.Context) (int64, error)

	// Purchase ledger. AppendPurchase assigns StartTicketNo from the current
	// sold count and increments it in the same step.
	AppendPurchase(ctx context.Context, p lottery.PurchaseTx) (lottery.PurchaseTx, error)
	GetPurchase(ctx context.Context, lotteryID int64, index int) (lottery.PurchaseTx, error)
	PurchaseCount(ctx context.Context, lotteryID int64) (int, error)
	ListPurchases(ctx context.Context, lotteryID int64) ([]lottery.PurchaseTx, error)
	FindPurchase(ctx context.Context, lotteryID, startTicketNo int64, quantity int) (lottery.PurchaseTx, error)

	// Commit-reveal. MarkRevealed flips the revealed flag, stores the secret
	// and folds it into the lottery's aggregate seed in one step.
	MarkRevealed(ctx context.Context, lotteryID, startTicketNo int64, secret []byte) error

	// Winner selection
	SetWinners(ctx context.Context, lotteryID int64, winners []int64) error
	GetWinners(ctx context.Context, lotteryID int64) ([]int64, error)

	// Treasury flags. Claim methods fail when the flag is already set;
	// Release methods compensate when a token transfer fails afterwards.
	ClaimProceeds(ctx context.Context, lotteryID int64) error
	ReleaseProceeds(ctx context.Context, lotteryID int64) error
	ClaimRefund(ctx context.Context, lotteryID int64, purchaseIndex int) error
	ReleaseRefund(ctx context.Context, lotteryID int64, purchaseIndex int) error
}

package app

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/chainlot/lottery-engine/internal/dispatch"
	"github.com/chainlot/lottery-engine/internal/domain/lottery"
)

// Dispatch module names. The grouping mirrors the facet split of the
// on-chain deployment: creation/purchase, views, administration, reveal.
const (
	ModuleCore   = "lottery-core"
	ModuleView   = "lottery-view"
	ModuleAdmin  = "lottery-admin"
	ModuleReveal = "lottery-reveal"
)

// ModuleNames lists every buildable dispatch module.
func ModuleNames() []string {
	return []string{ModuleCore, ModuleView, ModuleAdmin, ModuleReveal}
}

func (a *Application) buildModule(name string) (dispatch.Module, error) {
	switch name {
	case ModuleCore:
		return a.coreModule(), nil
	case ModuleView:
		return a.viewModule(), nil
	case ModuleAdmin:
		return a.adminModule(), nil
	case ModuleReveal:
		return a.revealModule(), nil
	default:
		return dispatch.Module{}, fmt.Errorf("%w: %s", dispatch.ErrUnknownModule, name)
	}
}

func (a *Application) coreModule() dispatch.Module {
	return dispatch.Module{
		Name: ModuleCore,
		Operations: map[string]dispatch.Handler{
			"buyTicketTx": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				quantity, err := req.Int("quantity")
				if err != nil {
					return nil, err
				}
				hash, err := req.Bytes("hash_rnd_number")
				if err != nil {
					return nil, err
				}
				start, err := a.Tickets.BuyTickets(ctx, lotteryNo, quantity, hash, req.Caller)
				if err != nil {
					return nil, err
				}
				return map[string]any{"start_ticket_no": start}, nil
			},
			"finalizeLottery": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				winners, err := a.Draw.Finalize(ctx, lotteryNo)
				if err != nil {
					return nil, err
				}
				return map[string]any{"winners": winners}, nil
			},
			"withdrawTicketRefund": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				index, err := req.Int("purchase_index")
				if err != nil {
					return nil, err
				}
				amount, err := a.Treasury.WithdrawRefund(ctx, lotteryNo, index, req.Caller)
				if err != nil {
					return nil, err
				}
				return map[string]any{"amount": amount}, nil
			},
		},
	}
}

func (a *Application) revealModule() dispatch.Module {
	return dispatch.Module{
		Name: ModuleReveal,
		Operations: map[string]dispatch.Handler{
			"revealRndNumberTx": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				start, err := req.Int64("start_ticket_no")
				if err != nil {
					return nil, err
				}
				quantity, err := req.Int("quantity")
				if err != nil {
					return nil, err
				}
				secret, err := req.Bytes("rnd_number")
				if err != nil {
					return nil, err
				}
				if err := a.Reveal.Reveal(ctx, lotteryNo, start, quantity, secret); err != nil {
					return nil, err
				}
				return map[string]any{"revealed": true}, nil
			},
		},
	}
}

func (a *Application) adminModule() dispatch.Module {
	return dispatch.Module{
		Name: ModuleAdmin,
		Operations: map[string]dispatch.Handler{
			"createLottery": func(ctx context.Context, req dispatch.Request) (any, error) {
				endTime, err := req.Time("end_time")
				if err != nil {
					return nil, err
				}
				cap64, err := req.Int64("total_ticket_cap")
				if err != nil {
					return nil, err
				}
				winners, err := req.Int("winners_count")
				if err != nil {
					return nil, err
				}
				minPct, err := req.Int("min_sale_percentage")
				if err != nil {
					return nil, err
				}
				price, err := req.Int64("ticket_price")
				if err != nil {
					return nil, err
				}
				descHash, _ := req.Params["desc_hash"].(string)
				descURL, _ := req.Params["desc_url"].(string)

				id, err := a.Registry.CreateLottery(ctx, req.Caller, lottery.CreateParams{
					EndTime:           endTime,
					TotalTicketCap:    cap64,
					WinnersCount:      winners,
					MinSalePercentage: minPct,
					TicketPrice:       price,
					DescHash:          descHash,
					DescURL:           descURL,
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{"lottery_no": id}, nil
			},
			"setPaymentToken": func(ctx context.Context, req dispatch.Request) (any, error) {
				id, err := req.String("token_id")
				if err != nil {
					return nil, err
				}
				tok, err := a.resolveToken(id)
				if err != nil {
					return nil, err
				}
				if err := a.Registry.SetPaymentToken(ctx, req.Caller, tok); err != nil {
					return nil, err
				}
				return map[string]any{"token_id": id}, nil
			},
			"withdrawTicketProceeds": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				amount, err := a.Treasury.WithdrawProceeds(ctx, lotteryNo, req.Caller)
				if err != nil {
					return nil, err
				}
				return map[string]any{"amount": amount}, nil
			},
		},
	}
}

func (a *Application) viewModule() dispatch.Module {
	return dispatch.Module{
		Name: ModuleView,
		Operations: map[string]dispatch.Handler{
			"getCurrentLotteryNo": func(ctx context.Context, _ dispatch.Request) (any, error) {
				id, err := a.Registry.CurrentLotteryID(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"lottery_no": id}, nil
			},
			"getLotteryInfo": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				return a.Registry.GetLottery(ctx, lotteryNo)
			},
			"getLotterySales": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				sold, err := a.Registry.LotterySales(ctx, lotteryNo)
				if err != nil {
					return nil, err
				}
				return map[string]any{"tickets_sold": sold}, nil
			},
			"getLotteryURL": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				hash, url, err := a.Registry.LotteryURL(ctx, lotteryNo)
				if err != nil {
					return nil, err
				}
				return map[string]any{"desc_hash": hash, "desc_url": url}, nil
			},
			"getLotteryPhase": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				phase, err := a.Registry.GetPhase(ctx, lotteryNo)
				if err != nil {
					return nil, err
				}
				return map[string]any{"phase": phase.String()}, nil
			},
			"getNumPurchaseTxs": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				n, err := a.Tickets.PurchaseCount(ctx, lotteryNo)
				if err != nil {
					return nil, err
				}
				return map[string]any{"count": n}, nil
			},
			"getIthPurchasedTicketTx": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				index, err := req.Int("index")
				if err != nil {
					return nil, err
				}
				p, err := a.Tickets.GetPurchase(ctx, lotteryNo, index)
				if err != nil {
					return nil, err
				}
				return purchaseView(p), nil
			},
			"getTicketOwner": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				ticketNo, err := req.Int64("ticket_no")
				if err != nil {
					return nil, err
				}
				owner, err := a.Tickets.TicketOwner(ctx, lotteryNo, ticketNo)
				if err != nil {
					return nil, err
				}
				return map[string]any{"owner": owner}, nil
			},
			"getIthWinningTicket": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				index, err := req.Int("index")
				if err != nil {
					return nil, err
				}
				ticket, err := a.Draw.WinningTicketAt(ctx, lotteryNo, index)
				if err != nil {
					return nil, err
				}
				return map[string]any{"ticket_no": ticket}, nil
			},
			"checkIfAddrTicketWon": func(ctx context.Context, req dispatch.Request) (any, error) {
				lotteryNo, err := req.Int64("lottery_no")
				if err != nil {
					return nil, err
				}
				addr, err := req.String("addr")
				if err != nil {
					return nil, err
				}
				won, err := a.Draw.CheckAddrWon(ctx, lotteryNo, addr)
				if err != nil {
					return nil, err
				}
				return map[string]any{"winning_tickets": won}, nil
			},
		},
	}
}

// purchaseView shapes a PurchaseTx for the query surface; the committed hash
// is shown, the secret only once revealed.
func purchaseView(p lottery.PurchaseTx) map[string]any {
	out := map[string]any{
		"buyer":           p.Buyer,
		"start_ticket_no": p.StartTicketNo,
		"quantity":        p.Quantity,
		"committed_hash":  hex.EncodeToString(p.CommittedHash),
		"revealed":        p.Revealed,
		"refunded":        p.Refunded,
		"purchased_at":    p.PurchasedAt,
	}
	if p.Revealed {
		out["revealed_secret"] = hex.EncodeToString(p.RevealedSecret)
	}
	return out
}

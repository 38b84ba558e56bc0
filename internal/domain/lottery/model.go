// Package lottery defines the core ticketed-lottery domain model: lotteries,
// ticket purchases, time-derived phases, and the commit-reveal seed.
package lottery

import "time"

// Phase is the time-derived stage of a lottery's lifecycle. It is never
// stored; callers compute it from the lottery's times and a clock.
type Phase int

const (
	// PhasePurchase runs from creation to the midpoint between start and end.
	PhasePurchase Phase = iota
	// PhaseReveal runs from the midpoint to the end time.
	PhaseReveal
	// PhaseEnded starts at the end time.
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhasePurchase:
		return "purchase"
	case PhaseReveal:
		return "reveal"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MaxTicketsPerPurchase caps the quantity of a single buy transaction.
const MaxTicketsPerPurchase = 30

// Lottery is a single ticketed lottery. Immutable after creation except for
// TicketsSold, Seed, Winners and ProceedsWithdrawn, which are mutated through
// store operations only.
type Lottery struct {
	ID                int64     `json:"id" db:"id"`
	StartTime         time.Time `json:"start_time" db:"start_time"`
	EndTime           time.Time `json:"end_time" db:"end_time"`
	TotalTicketCap    int64     `json:"total_ticket_cap" db:"total_ticket_cap"`
	WinnersCount      int       `json:"winners_count" db:"winners_count"`
	MinSalePercentage int       `json:"min_sale_percentage" db:"min_sale_percentage"`
	TicketPrice       int64     `json:"ticket_price" db:"ticket_price"` // smallest token unit
	DescHash          string    `json:"desc_hash" db:"desc_hash"`      // opaque, not interpreted
	DescURL           string    `json:"desc_url" db:"desc_url"`
	TicketsSold       int64     `json:"tickets_sold" db:"tickets_sold"`
	Seed              []byte    `json:"seed,omitempty" db:"seed"` // aggregate of revealed secrets
	Winners           []int64   `json:"winners,omitempty"`        // nil until finalized
	ProceedsWithdrawn bool      `json:"proceeds_withdrawn" db:"proceeds_withdrawn"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// PhaseAt derives the lottery phase at the given instant. The midpoint of the
// start/end window separates purchase from reveal; the end time is the hard
// cutoff for both purchases and reveals.
func (l Lottery) PhaseAt(now time.Time) Phase {
	if !now.Before(l.EndTime) {
		return PhaseEnded
	}
	midpoint := l.StartTime.Add(l.EndTime.Sub(l.StartTime) / 2)
	if !now.Before(midpoint) {
		return PhaseReveal
	}
	return PhasePurchase
}

// CanceledWith reports whether the lottery missed its minimum sale threshold
// given the final sold count. Only meaningful once the lottery has ended.
func (l Lottery) CanceledWith(ticketsSold int64) bool {
	return ticketsSold*100 < l.TotalTicketCap*int64(l.MinSalePercentage)
}

// Canceled reports the cancellation outcome based on the recorded sold count.
func (l Lottery) Canceled() bool {
	return l.CanceledWith(l.TicketsSold)
}

// Proceeds is the total amount collected from ticket sales.
func (l Lottery) Proceeds() int64 {
	return l.TicketsSold * l.TicketPrice
}

// PurchaseTx records one buy transaction: a contiguous range of ticket
// numbers, the buyer, and the buyer's commitment. Mutated exactly once on
// reveal and at most once on refund.
type PurchaseTx struct {
	ID             string    `json:"id" db:"id"`
	LotteryID      int64     `json:"lottery_id" db:"lottery_id"`
	Buyer          string    `json:"buyer" db:"buyer"`
	StartTicketNo  int64     `json:"start_ticket_no" db:"start_ticket_no"` // inclusive, 0-based
	Quantity       int       `json:"quantity" db:"quantity"`
	CommittedHash  []byte    `json:"committed_hash" db:"committed_hash"`
	Revealed       bool      `json:"revealed" db:"revealed"`
	RevealedSecret []byte    `json:"revealed_secret,omitempty" db:"revealed_secret"`
	Refunded       bool      `json:"refunded" db:"refunded"`
	PurchasedAt    time.Time `json:"purchased_at" db:"purchased_at"`
}

// Covers reports whether the purchase's ticket range contains ticketNo.
func (p PurchaseTx) Covers(ticketNo int64) bool {
	return ticketNo >= p.StartTicketNo && ticketNo < p.StartTicketNo+int64(p.Quantity)
}

// CreateParams carries the operator-supplied parameters for a new lottery.
type CreateParams struct {
	EndTime           time.Time `json:"end_time"`
	TotalTicketCap    int64     `json:"total_ticket_cap"`
	WinnersCount      int       `json:"winners_count"`
	MinSalePercentage int       `json:"min_sale_percentage"`
	TicketPrice       int64     `json:"ticket_price"`
	DescHash          string    `json:"desc_hash"`
	DescURL           string    `json:"desc_url"`
}

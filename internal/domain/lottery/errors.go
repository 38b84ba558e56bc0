package lottery

import "errors"

// Engine errors. Every operation either fully applies its effects or returns
// one of these with the pre-call state intact.
var (
	ErrInvalidParameters  = errors.New("invalid lottery parameters")
	ErrInvalidSchedule    = errors.New("end time must be in the future")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 30")
	ErrLotteryEnded       = errors.New("lottery has ended")
	ErrRevealWindowClosed = errors.New("reveal window is closed")

	ErrNoSuchLottery  = errors.New("lottery not found")
	ErrNoSuchPurchase = errors.New("purchase not found")
	ErrNoSuchTicket   = errors.New("ticket not found")
	ErrNotOwner       = errors.New("caller does not own this purchase")

	ErrHashMismatch    = errors.New("secret does not match committed hash")
	ErrAlreadyRevealed = errors.New("purchase already revealed")

	ErrNotEligible        = errors.New("lottery not eligible")
	ErrNotFinalized       = errors.New("lottery not finalized")
	ErrLotteryNotCanceled = errors.New("lottery is not canceled")
	ErrAlreadyWithdrawn   = errors.New("proceeds already withdrawn")
	ErrAlreadyRefunded    = errors.New("purchase already refunded")

	ErrNotAuthorized      = errors.New("caller is not the operator")
	ErrPaymentTokenNotSet = errors.New("payment token not configured")
)

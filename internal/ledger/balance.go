package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Movement is the quantity received and consumed on one day.
type Movement struct {
	Date   time.Time
	Input  decimal.Decimal
	Output decimal.Decimal
}

// Balance is the end-of-day stock that carries over to the next day.
type Balance struct {
	Date      time.Time
	Remaining decimal.Decimal
	// Shortfall is how much more was consumed than was available; the
	// remaining stock is floored at zero and the difference lands here.
	Shortfall decimal.Decimal
}

// ComputeRunningBalance scans the movements once, left to right, and returns
// remaining[i] = max(0, remaining[i-1] + input[i] - output[i]) with
// remaining[-1] = opening. Gaps between dates are not interpolated.
func ComputeRunningBalance(movements []Movement, opening decimal.Decimal) ([]Balance, error) {
	if opening.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance %s", ErrNegativeQuantity, opening)
	}

	balances := make([]Balance, 0, len(movements))
	remaining := opening

	for i, m := range movements {
		if m.Input.IsNegative() || m.Output.IsNegative() {
			return nil, fmt.Errorf("%w: %s input=%s output=%s", ErrNegativeQuantity, m.Date.Format(DateLayout), m.Input, m.Output)
		}
		if i > 0 && !m.Date.After(movements[i-1].Date) {
			return nil, fmt.Errorf("%w: %s follows %s", ErrInvalidRecordOrder, m.Date.Format(DateLayout), movements[i-1].Date.Format(DateLayout))
		}

		next := remaining.Add(m.Input).Sub(m.Output)
		balance := Balance{Date: m.Date, Remaining: next, Shortfall: decimal.Zero}
		if next.IsNegative() {
			balance.Remaining = decimal.Zero
			balance.Shortfall = next.Neg()
		}

		remaining = balance.Remaining
		balances = append(balances, balance)
	}

	return balances, nil
}

package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stationledger/internal/domain/models"
)

// MaterialLedger is the day-by-day balance of one material over [Start, End].
// Opening is the remaining stock at the end of the day before Start.
type MaterialLedger struct {
	Material models.MaterialType
	Start    time.Time
	End      time.Time
	Opening  decimal.Decimal
	Entries  []models.LedgerEntry
}

// Build computes the ledger for [start, end] from the material's full history
// up to end. The chain starts at zero on the first tracked day and missing days
// are treated as zero activity.
func Build(material models.MaterialType, history []models.DailyMaterialRecord, start, end time.Time) (MaterialLedger, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return MaterialLedger{}, fmt.Errorf("%w: %s after %s", ErrInvalidPeriod, start.Format(DateLayout), end.Format(DateLayout))
	}

	from := start
	relevant := make([]models.DailyMaterialRecord, 0, len(history))
	for _, rec := range history {
		day := Day(rec.Date)
		if day.After(end) {
			continue
		}
		if day.Before(from) {
			from = day
		}
		relevant = append(relevant, rec)
	}

	filled, err := ZeroFill(relevant, material, from, end)
	if err != nil {
		return MaterialLedger{}, err
	}

	movements := make([]Movement, len(filled))
	for i, entry := range filled {
		movements[i] = Movement{Date: entry.Record.Date, Input: entry.Record.InputQuantity, Output: entry.Record.OutputQuantity}
	}

	balances, err := ComputeRunningBalance(movements, decimal.Zero)
	if err != nil {
		return MaterialLedger{}, err
	}
	for i := range filled {
		filled[i].Remaining = balances[i].Remaining
		filled[i].Shortfall = balances[i].Shortfall
	}

	full := MaterialLedger{Material: material, Start: from, End: end, Opening: decimal.Zero, Entries: filled}
	return full.Window(start, end)
}

// Window narrows the ledger to [start, end], which must lie inside it. The
// opening balance becomes the remaining stock of the day before start.
func (l MaterialLedger) Window(start, end time.Time) (MaterialLedger, error) {
	start, end = Day(start), Day(end)
	if start.Before(l.Start) || end.After(l.End) || end.Before(start) {
		return MaterialLedger{}, fmt.Errorf("%w: %s..%s outside %s..%s", ErrInvalidPeriod,
			start.Format(DateLayout), end.Format(DateLayout), l.Start.Format(DateLayout), l.End.Format(DateLayout))
	}

	offset := DaysBetween(l.Start, start)
	last := DaysBetween(l.Start, end)

	opening := l.Opening
	if offset > 0 {
		opening = l.Entries[offset-1].Remaining
	}

	entries := make([]models.LedgerEntry, last-offset+1)
	copy(entries, l.Entries[offset:last+1])
	annotateCarryOver(entries, opening)

	return MaterialLedger{Material: l.Material, Start: start, End: end, Opening: opening, Entries: entries}, nil
}

// Summary aggregates the ledger over its own range.
func (l MaterialLedger) Summary() models.Summary {
	return Aggregate(l.Entries, l.Start, l.End, l.Opening)
}

func annotateCarryOver(entries []models.LedgerEntry, opening decimal.Decimal) {
	carried := opening
	for i := range entries {
		entries[i].CarryOverNote = ""
		if carried.IsPositive() {
			prev := entries[i].Record.Date.AddDate(0, 0, -1)
			entries[i].CarryOverNote = fmt.Sprintf("carry-over %s from %s", carried.String(), prev.Format(DateLayout))
		}
		carried = entries[i].Remaining
	}
}

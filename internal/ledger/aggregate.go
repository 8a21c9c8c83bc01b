package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stationledger/internal/domain/models"
)

var hundred = decimal.NewFromInt(100)

// Aggregate summarizes the entries dated within [start, end]. Entries outside
// the range are ignored, and an empty range yields a zero-valued summary whose
// closing balance equals the opening balance.
func Aggregate(entries []models.LedgerEntry, start, end time.Time, opening decimal.Decimal) models.Summary {
	start, end = Day(start), Day(end)

	summary := models.Summary{
		RangeStart:           start,
		RangeEnd:             end,
		TotalInput:           decimal.Zero,
		TotalOutput:          decimal.Zero,
		OpeningBalance:       opening,
		ClosingBalance:       opening,
		AverageInputPrice:    decimal.Zero,
		AverageOutputPrice:   decimal.Zero,
		ProcessingEfficiency: decimal.Zero,
		TotalShortfall:       decimal.Zero,
	}

	inputPrices := decimal.Zero
	outputPrices := decimal.Zero
	var inputPriced, outputPriced int
	var last time.Time

	for _, entry := range entries {
		day := Day(entry.Record.Date)
		if day.Before(start) || day.After(end) {
			continue
		}

		summary.TotalInput = summary.TotalInput.Add(entry.Record.InputQuantity)
		summary.TotalOutput = summary.TotalOutput.Add(entry.Record.OutputQuantity)

		if last.IsZero() || !day.Before(last) {
			summary.ClosingBalance = entry.Remaining
			last = day
		}
		if entry.Recorded {
			summary.RecordedDays++
		}
		if entry.Shortfall.IsPositive() {
			summary.ShortfallDays++
			summary.TotalShortfall = summary.TotalShortfall.Add(entry.Shortfall)
		}
		if !entry.Record.UnitPriceInput.IsZero() {
			inputPrices = inputPrices.Add(entry.Record.UnitPriceInput)
			inputPriced++
		}
		if !entry.Record.UnitPriceOutput.IsZero() {
			outputPrices = outputPrices.Add(entry.Record.UnitPriceOutput)
			outputPriced++
		}
	}

	if inputPriced > 0 {
		summary.AverageInputPrice = inputPrices.Div(decimal.NewFromInt(int64(inputPriced))).Round(4)
	}
	if outputPriced > 0 {
		summary.AverageOutputPrice = outputPrices.Div(decimal.NewFromInt(int64(outputPriced))).Round(4)
	}
	if summary.TotalInput.IsPositive() {
		summary.ProcessingEfficiency = summary.TotalOutput.Mul(hundred).Div(summary.TotalInput).Round(2)
	}

	summary.Revenue = summary.TotalOutput.Mul(summary.AverageOutputPrice)
	summary.Cost = summary.TotalInput.Mul(summary.AverageInputPrice)
	summary.Profit = summary.Revenue.Sub(summary.Cost)

	return summary
}

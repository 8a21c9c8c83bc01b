package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one day of a material ledger with its derived end-of-day balance.
// Shortfall is the quantity dropped by the zero floor and stays zero on consistent
// days. Recorded is false for days zero-filled because no entry exists.
type LedgerEntry struct {
	Record        DailyMaterialRecord `json:"record"`
	Remaining     decimal.Decimal     `json:"remaining"`
	Shortfall     decimal.Decimal     `json:"shortfall"`
	Recorded      bool                `json:"recorded"`
	CarryOverNote string              `json:"carryOverNote,omitempty"`
}

// Summary aggregates ledger entries over a contiguous date range.
type Summary struct {
	RangeStart           time.Time       `json:"rangeStart"`
	RangeEnd             time.Time       `json:"rangeEnd"`
	TotalInput           decimal.Decimal `json:"totalInput"`
	TotalOutput          decimal.Decimal `json:"totalOutput"`
	OpeningBalance       decimal.Decimal `json:"openingBalance"`
	ClosingBalance       decimal.Decimal `json:"closingBalance"`
	AverageInputPrice    decimal.Decimal `json:"averageInputPrice"`
	AverageOutputPrice   decimal.Decimal `json:"averageOutputPrice"`
	ProcessingEfficiency decimal.Decimal `json:"processingEfficiency"` // percent
	Revenue              decimal.Decimal `json:"revenue"`
	Cost                 decimal.Decimal `json:"cost"`
	Profit               decimal.Decimal `json:"profit"`
	RecordedDays         int             `json:"recordedDays"`
	ShortfallDays        int             `json:"shortfallDays"`
	TotalShortfall       decimal.Decimal `json:"totalShortfall"`
}

// WeeklyLedger is the daily view of one ISO week plus its totals.
type WeeklyLedger struct {
	MaterialType MaterialType  `json:"materialType"`
	Year         int           `json:"year"`
	Week         int           `json:"week"`
	DailyData    []LedgerEntry `json:"dailyData"`
	Totals       Summary       `json:"totals"`
}

// MonthSummary is the aggregate of one calendar month.
type MonthSummary struct {
	Year    int        `json:"year"`
	Month   time.Month `json:"month"`
	Summary Summary    `json:"summary"`
}

// MonthlyLedger holds consecutive month summaries, oldest first.
type MonthlyLedger struct {
	MaterialType     MaterialType   `json:"materialType"`
	MonthlySummaries []MonthSummary `json:"monthlySummaries"`
}

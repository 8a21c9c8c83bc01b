package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/mamadbah2/stationledger/internal/domain/models"
)

func record(t *testing.T, date string, input, output int64) models.DailyMaterialRecord {
	t.Helper()
	return models.DailyMaterialRecord{
		Date:           day(t, date),
		MaterialType:   models.MaterialTofu,
		InputQuantity:  dec(input),
		OutputQuantity: dec(output),
	}
}

func TestBuild_OpeningFromHistory(t *testing.T) {
	history := []models.DailyMaterialRecord{
		record(t, "2025-06-01", 100, 20),
		record(t, "2025-06-02", 0, 90),
		record(t, "2025-06-03", 50, 10),
		// 2025-06-04 missing: zero activity
		record(t, "2025-06-05", 5, 0),
		record(t, "2025-06-06", 0, 3),
	}

	l, err := Build(models.MaterialTofu, history, day(t, "2025-06-05"), day(t, "2025-06-07"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if !l.Opening.Equal(dec(40)) {
		t.Errorf("Expected opening 40, got %s", l.Opening)
	}
	if len(l.Entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(l.Entries))
	}

	expected := []int64{45, 42, 42}
	for i, want := range expected {
		if !l.Entries[i].Remaining.Equal(dec(want)) {
			t.Errorf("entry %d: expected %d, got %s", i, want, l.Entries[i].Remaining)
		}
	}
	if l.Entries[2].Recorded {
		t.Errorf("Expected trailing day to be zero-filled")
	}
	if !strings.Contains(l.Entries[0].CarryOverNote, "40") || !strings.Contains(l.Entries[0].CarryOverNote, "2025-06-04") {
		t.Errorf("Unexpected carry-over note %q", l.Entries[0].CarryOverNote)
	}

	summary := l.Summary()
	if !summary.OpeningBalance.Equal(dec(40)) || !summary.ClosingBalance.Equal(dec(42)) {
		t.Errorf("Expected opening 40 closing 42, got %s and %s", summary.OpeningBalance, summary.ClosingBalance)
	}
	if summary.RecordedDays != 2 {
		t.Errorf("Expected 2 recorded days, got %d", summary.RecordedDays)
	}
}

func TestBuild_RangeBeforeHistory(t *testing.T) {
	history := []models.DailyMaterialRecord{record(t, "2025-06-10", 10, 0)}

	l, err := Build(models.MaterialTofu, history, day(t, "2025-06-01"), day(t, "2025-06-07"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !l.Opening.IsZero() {
		t.Errorf("Expected opening 0, got %s", l.Opening)
	}
	for i, e := range l.Entries {
		if !e.Remaining.IsZero() || e.Recorded || e.CarryOverNote != "" {
			t.Errorf("entry %d: expected empty zero-filled day, got %+v", i, e)
		}
	}
}

func TestBuild_NoHistory(t *testing.T) {
	l, err := Build(models.MaterialPoultryMeat, nil, day(t, "2025-06-02"), day(t, "2025-06-08"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(l.Entries) != 7 {
		t.Fatalf("Expected 7 entries, got %d", len(l.Entries))
	}

	summary := l.Summary()
	if !summary.TotalInput.IsZero() || !summary.ProcessingEfficiency.IsZero() || !summary.ClosingBalance.IsZero() {
		t.Errorf("Expected zero summary, got %+v", summary)
	}
}

func TestBuild_InvertedRange(t *testing.T) {
	_, err := Build(models.MaterialTofu, nil, day(t, "2025-06-08"), day(t, "2025-06-02"))
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("Expected ErrInvalidPeriod, got %v", err)
	}
}

func TestMaterialLedger_Window(t *testing.T) {
	history := []models.DailyMaterialRecord{
		record(t, "2025-01-30", 20, 5),
		record(t, "2025-02-01", 10, 0),
		record(t, "2025-02-28", 0, 50),
	}

	l, err := Build(models.MaterialTofu, history, day(t, "2025-01-01"), day(t, "2025-02-28"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	feb, err := l.Window(day(t, "2025-02-01"), day(t, "2025-02-28"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !feb.Opening.Equal(dec(15)) {
		t.Errorf("Expected February opening 15, got %s", feb.Opening)
	}

	summary := feb.Summary()
	if !summary.ClosingBalance.IsZero() {
		t.Errorf("Expected closing 0, got %s", summary.ClosingBalance)
	}
	if summary.ShortfallDays != 1 || !summary.TotalShortfall.Equal(dec(25)) {
		t.Errorf("Expected one shortfall of 25, got %d days / %s", summary.ShortfallDays, summary.TotalShortfall)
	}

	if _, err := l.Window(day(t, "2024-12-31"), day(t, "2025-01-05")); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("Expected ErrInvalidPeriod outside ledger, got %v", err)
	}
}

func TestBuild_HistorySpanningCenturies(t *testing.T) {
	history := []models.DailyMaterialRecord{
		record(t, "1625-01-14", 10, 0),
		record(t, "2025-01-14", 10, 0),
	}

	l, err := Build(models.MaterialTofu, history, day(t, "2025-01-13"), day(t, "2025-01-19"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if len(l.Entries) != 7 {
		t.Fatalf("Expected 7 entries, got %d", len(l.Entries))
	}
	if !l.Entries[0].Record.Date.Equal(day(t, "2025-01-13")) {
		t.Errorf("Expected first entry on 2025-01-13, got %s", l.Entries[0].Record.Date.Format(DateLayout))
	}
	if !l.Opening.Equal(dec(10)) {
		t.Errorf("Expected opening 10 carried from 1625, got %s", l.Opening)
	}
	if !l.Entries[1].Recorded || !l.Entries[1].Record.InputQuantity.Equal(dec(10)) {
		t.Errorf("Expected the 2025-01-14 input inside its week, got %+v", l.Entries[1])
	}
	if !l.Summary().TotalInput.Equal(dec(10)) || !l.Summary().ClosingBalance.Equal(dec(20)) {
		t.Errorf("Expected input 10 closing 20, got %s and %s", l.Summary().TotalInput, l.Summary().ClosingBalance)
	}
}

package entries

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/ledger"
	"github.com/mamadbah2/stationledger/internal/repository/memory"
	"github.com/mamadbah2/stationledger/internal/service/reporting"
)

type invalidationCounter struct {
	invalidated []models.MaterialType
}

func (c *invalidationCounter) Get(context.Context, string, interface{}) (bool, error) {
	return false, nil
}

func (c *invalidationCounter) Version(context.Context, models.MaterialType) (int64, error) {
	return int64(len(c.invalidated)), nil
}

func (c *invalidationCounter) Set(context.Context, models.MaterialType, int64, string, interface{}) error {
	return nil
}

func (c *invalidationCounter) Invalidate(_ context.Context, material models.MaterialType) error {
	c.invalidated = append(c.invalidated, material)
	return nil
}

func newTestService(t *testing.T) (*Service, *memory.Repository, *invalidationCounter) {
	t.Helper()
	store := memory.NewRepository()
	counter := &invalidationCounter{}
	svc := NewService(store, counter, reporting.NewService(store, nil, nil, "en", nil), time.UTC, nil)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC) }
	return svc, store, counter
}

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestRecordEntry_Validation(t *testing.T) {
	longNote := strings.Repeat("x", 501)

	testCases := []struct {
		name     string
		patch    models.RecordPatch
		expected error
		field    string
	}{
		{"negative input", models.RecordPatch{Input: decPtr("-1")}, ledger.ErrNegativeQuantity, "input"},
		{"negative output", models.RecordPatch{Output: decPtr("-0.5")}, ledger.ErrNegativeQuantity, "output"},
		{"tiny negative input", models.RecordPatch{Input: decPtr("-1e-400")}, ledger.ErrNegativeQuantity, "input"},
		{"tiny negative price", models.RecordPatch{UnitPriceInput: decPtr("-1e-400")}, ledger.ErrNegativePrice, "unitPriceInput"},
		{"negative price", models.RecordPatch{UnitPriceOutput: decPtr("-100")}, ledger.ErrNegativePrice, "unitPriceOutput"},
		{"note too long", models.RecordPatch{Note: &longNote}, ErrInvalidArguments, "note"},
		{"empty patch", models.RecordPatch{}, ErrInvalidArguments, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, counter := newTestService(t)
			_, err := svc.RecordEntry(context.Background(), models.MaterialTofu, time.Now(), tc.patch)
			if !errors.Is(err, tc.expected) {
				t.Fatalf("Expected %v, got %v", tc.expected, err)
			}
			if tc.field != "" {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("Expected ValidationError, got %T", err)
				}
				if _, ok := ve.Fields[tc.field]; !ok {
					t.Errorf("Expected field %s in %v", tc.field, ve.Fields)
				}
			}
			if len(counter.invalidated) != 0 {
				t.Errorf("Expected no invalidation on rejected patch")
			}
		})
	}
}

func TestRecordEntry_DateWindow(t *testing.T) {
	testCases := []struct {
		name string
		date time.Time
		ok   bool
	}{
		{"first accepted day", time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC), true},
		{"last accepted day", time.Date(2099, 12, 31, 9, 0, 0, 0, time.UTC), true},
		{"mistyped year", time.Date(1625, 1, 14, 0, 0, 0, 0, time.UTC), false},
		{"zero date", time.Time{}, false},
		{"far future", time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, counter := newTestService(t)
			ctx := context.Background()

			_, err := svc.RecordEntry(ctx, models.MaterialTofu, tc.date, models.RecordPatch{Input: decPtr("10")})
			if tc.ok {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}

			if !errors.Is(err, ledger.ErrInvalidPeriod) {
				t.Fatalf("Expected ErrInvalidPeriod, got %v", err)
			}
			if len(counter.invalidated) != 0 {
				t.Errorf("Expected no invalidation on rejected date")
			}
			history, err := store.QueryRange(ctx, models.MaterialTofu, time.Time{}, ledger.LatestDay.AddDate(1, 0, 0))
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if len(history) != 0 {
				t.Errorf("Expected nothing stored, got %d records", len(history))
			}
		})
	}
}

func TestRecordEntry_MergesAndInvalidates(t *testing.T) {
	svc, _, counter := newTestService(t)
	ctx := context.Background()
	day := time.Date(2025, 1, 13, 18, 0, 0, 0, time.UTC)

	if _, err := svc.RecordEntry(ctx, models.MaterialSausage, day, models.RecordPatch{Input: decPtr("12.5"), Output: decPtr("3")}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	record, err := svc.RecordEntry(ctx, models.MaterialSausage, day, models.RecordPatch{UnitPriceInput: decPtr("90000")})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if !record.InputQuantity.Equal(decimal.RequireFromString("12.5")) || !record.UnitPriceInput.Equal(decimal.NewFromInt(90000)) {
		t.Errorf("Expected merged record, got %+v", record)
	}
	if record.Date.Format(ledger.DateLayout) != "2025-01-13" || record.Date.Hour() != 0 {
		t.Errorf("Expected day truncated date, got %s", record.Date)
	}
	if len(counter.invalidated) != 2 || counter.invalidated[0] != models.MaterialSausage {
		t.Errorf("Expected two sausage invalidations, got %v", counter.invalidated)
	}
}

func TestGetEntry_MissingIsSoft(t *testing.T) {
	svc, _, _ := newTestService(t)

	record, recorded, err := svc.GetEntry(context.Background(), models.MaterialTofu, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if recorded {
		t.Error("Expected recorded=false")
	}
	if !record.InputQuantity.IsZero() || record.MaterialType != models.MaterialTofu {
		t.Errorf("Expected zero tofu record, got %+v", record)
	}
}

func TestHandleCommand(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	reply, err := svc.HandleCommand(ctx, models.ParseCommand("/entry Tofu 100 40,5 morning batch"), "84900000000")
	if err != nil {
		t.Fatalf("entry: unexpected error %v", err)
	}
	if !strings.Contains(reply, "Saved tofu for 2025-01-15") || !strings.Contains(reply, "Remaining 59.5") {
		t.Errorf("unexpected entry reply %q", reply)
	}

	stored, err := store.GetRecord(ctx, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), models.MaterialTofu)
	if err != nil {
		t.Fatalf("stored record: %v", err)
	}
	if stored.Note != "morning batch" {
		t.Errorf("Expected note to keep its case, got %q", stored.Note)
	}

	if _, err := svc.HandleCommand(ctx, models.ParseCommand("/price tofu 8000 15000"), "84900000000"); err != nil {
		t.Fatalf("price: unexpected error %v", err)
	}

	reply, err = svc.HandleCommand(ctx, models.ParseCommand("/stock tofu"), "84900000000")
	if err != nil {
		t.Fatalf("stock: unexpected error %v", err)
	}
	if !strings.Contains(reply, "2025-W03") || !strings.Contains(reply, "remaining 59.5") {
		t.Errorf("unexpected stock reply %q", reply)
	}

	reply, err = svc.HandleCommand(ctx, models.ParseCommand("help"), "84900000000")
	if err != nil || !strings.Contains(reply, "poultryMeat") {
		t.Errorf("unexpected help reply %q (%v)", reply, err)
	}
}

func TestHandleCommand_Errors(t *testing.T) {
	testCases := []struct {
		input    string
		expected error
	}{
		{"/entry tofu 10", ErrInvalidArguments},
		{"/entry tofu ten 1", ErrInvalidArguments},
		{"/entry rice 1 1", models.ErrUnknownMaterial},
		{"/entry tofu -1 1", ledger.ErrNegativeQuantity},
		{"/price tofu 1", ErrInvalidArguments},
		{"/stock", ErrInvalidArguments},
		{"/eggs 12", ErrUnsupportedCommand},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			_, err := svc.HandleCommand(context.Background(), models.ParseCommand(tc.input), "sender")
			if !errors.Is(err, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, err)
			}
		})
	}
}

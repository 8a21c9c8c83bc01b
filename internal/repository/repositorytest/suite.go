// Package repositorytest holds the behaviour every RecordStore backend must share.
package repositorytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/repository"
)

// RunRecordStoreSuite exercises a fresh, empty store returned by newStore.
func RunRecordStoreSuite(t *testing.T, newStore func(t *testing.T) repository.RecordStore) {
	t.Run("missing record", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetRecord(context.Background(), day(2025, 1, 13), models.MaterialTofu)
		if !errors.Is(err, repository.ErrRecordNotFound) {
			t.Fatalf("Expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("upsert merges patches", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		date := time.Date(2025, 1, 13, 17, 45, 0, 0, time.UTC)

		first, err := store.UpsertRecord(ctx, date, models.MaterialTofu, models.RecordPatch{Input: dec("120.5"), Output: dec("100")})
		if err != nil {
			t.Fatalf("first upsert: %v", err)
		}
		if first.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}

		note := "ca sáng"
		second, err := store.UpsertRecord(ctx, date, models.MaterialTofu, models.RecordPatch{UnitPriceOutput: dec("15000"), Note: &note})
		if err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		got, err := store.GetRecord(ctx, day(2025, 1, 13), models.MaterialTofu)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		for _, rec := range []models.DailyMaterialRecord{second, got} {
			if !rec.InputQuantity.Equal(decimal.RequireFromString("120.5")) || !rec.OutputQuantity.Equal(decimal.NewFromInt(100)) {
				t.Errorf("Expected quantities to survive the price patch, got in=%s out=%s", rec.InputQuantity, rec.OutputQuantity)
			}
			if !rec.UnitPriceOutput.Equal(decimal.NewFromInt(15000)) || !rec.UnitPriceInput.IsZero() {
				t.Errorf("unexpected prices in=%s out=%s", rec.UnitPriceInput, rec.UnitPriceOutput)
			}
			if rec.Note != note {
				t.Errorf("Expected note %q, got %q", note, rec.Note)
			}
			if !rec.Date.Equal(day(2025, 1, 13)) {
				t.Errorf("Expected date truncated to the day, got %s", rec.Date)
			}
			if rec.MaterialType != models.MaterialTofu {
				t.Errorf("Expected tofu, got %s", rec.MaterialType)
			}
		}
	})

	t.Run("query range is ordered and scoped", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, d := range []int{15, 11, 13, 20} {
			if _, err := store.UpsertRecord(ctx, day(2025, 1, d), models.MaterialSausage, models.RecordPatch{Input: dec("1")}); err != nil {
				t.Fatalf("seed sausage %d: %v", d, err)
			}
		}
		if _, err := store.UpsertRecord(ctx, day(2025, 1, 13), models.MaterialTofu, models.RecordPatch{Input: dec("9")}); err != nil {
			t.Fatalf("seed tofu: %v", err)
		}

		records, err := store.QueryRange(ctx, models.MaterialSausage, day(2025, 1, 11), day(2025, 1, 15))
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		expected := []int{11, 13, 15}
		if len(records) != len(expected) {
			t.Fatalf("Expected %d records, got %d", len(expected), len(records))
		}
		for i, d := range expected {
			if records[i].Date.Day() != d || records[i].MaterialType != models.MaterialSausage {
				t.Errorf("record %d: expected sausage on day %d, got %s on %s", i, d, records[i].MaterialType, records[i].Date)
			}
		}

		all, err := store.QueryRange(ctx, models.MaterialSausage, time.Time{}, day(2025, 12, 31))
		if err != nil {
			t.Fatalf("open query: %v", err)
		}
		if len(all) != 4 {
			t.Errorf("Expected full history of 4 records, got %d", len(all))
		}
	})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

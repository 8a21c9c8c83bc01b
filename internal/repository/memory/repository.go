package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/ledger"
	"github.com/mamadbah2/stationledger/internal/repository"
)

type recordKey struct {
	material models.MaterialType
	day      time.Time
}

// Repository keeps daily records in process memory. It backs local runs and tests.
type Repository struct {
	mu      sync.RWMutex
	records map[recordKey]models.DailyMaterialRecord
	now     func() time.Time
}

// Verify interface compliance
var _ repository.RecordStore = (*Repository)(nil)

// NewRepository creates an empty in-memory record store.
func NewRepository() *Repository {
	return &Repository{
		records: make(map[recordKey]models.DailyMaterialRecord),
		now:     time.Now,
	}
}

// GetRecord returns the record of one material for one day.
func (r *Repository) GetRecord(_ context.Context, date time.Time, material models.MaterialType) (models.DailyMaterialRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[recordKey{material: material, day: ledger.Day(date)}]
	if !ok {
		return models.DailyMaterialRecord{}, repository.ErrRecordNotFound
	}
	return rec, nil
}

// UpsertRecord creates the record on first entry and merges the patch afterwards.
func (r *Repository) UpsertRecord(_ context.Context, date time.Time, material models.MaterialType, patch models.RecordPatch) (models.DailyMaterialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	key := recordKey{material: material, day: ledger.Day(date)}

	rec, ok := r.records[key]
	if !ok {
		rec = models.DailyMaterialRecord{Date: key.day, MaterialType: material, CreatedAt: now}
	}
	patch.Apply(&rec)
	rec.UpdatedAt = now

	r.records[key] = rec
	return rec, nil
}

// QueryRange returns the material's records within [start, end] sorted by date.
func (r *Repository) QueryRange(_ context.Context, material models.MaterialType, start, end time.Time) ([]models.DailyMaterialRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start, end = ledger.Day(start), ledger.Day(end)

	var result []models.DailyMaterialRecord
	for key, rec := range r.records {
		if key.material != material || key.day.Before(start) || key.day.After(end) {
			continue
		}
		result = append(result, rec)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// Close is a no-op for the in-memory store.
func (r *Repository) Close(context.Context) error {
	return nil
}

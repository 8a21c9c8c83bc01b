package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mamadbah2/stationledger/internal/domain/models"
)

// ErrRecordNotFound is returned when no entry exists for a (date, material) pair.
var ErrRecordNotFound = errors.New("record not found")

// RecordStore persists one DailyMaterialRecord per (date, material). Writes to
// the same key are last-write-wins.
type RecordStore interface {
	GetRecord(ctx context.Context, date time.Time, material models.MaterialType) (models.DailyMaterialRecord, error)
	UpsertRecord(ctx context.Context, date time.Time, material models.MaterialType, patch models.RecordPatch) (models.DailyMaterialRecord, error)
	// QueryRange returns the records dated within [start, end], oldest first,
	// in a single read.
	QueryRange(ctx context.Context, material models.MaterialType, start, end time.Time) ([]models.DailyMaterialRecord, error)
	Close(ctx context.Context) error
}

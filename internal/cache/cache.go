package cache

import (
	"context"
	"errors"

	"github.com/mamadbah2/stationledger/internal/domain/models"
)

// ErrStale is returned by Set when the material was invalidated after the
// caller read its version.
var ErrStale = errors.New("cached view is stale")

// SummaryCache stores computed ledger views. A miss is reported as (false, nil).
type SummaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Version returns the material's invalidation counter. Read it before
	// loading the data that Set will store.
	Version(ctx context.Context, material models.MaterialType) (int64, error)
	// Set stores value only while the material is still at version.
	Set(ctx context.Context, material models.MaterialType, version int64, key string, value interface{}) error
	// Invalidate drops every cached view of the material and bumps its version.
	Invalidate(ctx context.Context, material models.MaterialType) error
}

// NopCache never stores anything.
type NopCache struct{}

var _ SummaryCache = NopCache{}

func (NopCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }

func (NopCache) Version(context.Context, models.MaterialType) (int64, error) { return 0, nil }

func (NopCache) Set(context.Context, models.MaterialType, int64, string, interface{}) error {
	return nil
}

func (NopCache) Invalidate(context.Context, models.MaterialType) error { return nil }

package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mamadbah2/stationledger/internal/cache"
	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/ledger"
	"github.com/mamadbah2/stationledger/internal/repository"
)

// MaxMonthCount bounds the number of months a single monthly report may span.
const MaxMonthCount = 24

// Service derives ledgers and summaries from the record store.
type Service struct {
	store     repository.RecordStore
	cache     cache.SummaryCache
	materials []models.MaterialType
	printer   *message.Printer
	logger    *zap.Logger
}

// NewService wires a new reporting service instance. A nil cache disables caching.
func NewService(store repository.RecordStore, summaryCache cache.SummaryCache, materials []models.MaterialType, locale string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if summaryCache == nil {
		summaryCache = cache.NopCache{}
	}
	if len(materials) == 0 {
		materials = models.DefaultMaterials()
	}

	tag, err := language.Parse(locale)
	if err != nil {
		logger.Warn("unknown report locale, falling back to english", zap.String("locale", locale), zap.Error(err))
		tag = language.English
	}

	return &Service{
		store:     store,
		cache:     summaryCache,
		materials: materials,
		printer:   message.NewPrinter(tag),
		logger:    logger,
	}
}

// Materials lists the tracked material types.
func (s *Service) Materials() []models.MaterialType {
	return append([]models.MaterialType(nil), s.materials...)
}

// ResolveMaterial maps a user supplied name onto a tracked material.
func (s *Service) ResolveMaterial(raw string) (models.MaterialType, error) {
	return models.ParseMaterialType(raw, s.materials)
}

// Ledger builds the day-by-day ledger of a material over [start, end] from a
// single read of its history.
func (s *Service) Ledger(ctx context.Context, material models.MaterialType, start, end time.Time) (ledger.MaterialLedger, models.Summary, error) {
	history, err := s.store.QueryRange(ctx, material, time.Time{}, end)
	if err != nil {
		return ledger.MaterialLedger{}, models.Summary{}, fmt.Errorf("load %s history: %w", material, err)
	}

	l, err := ledger.Build(material, history, start, end)
	if err != nil {
		return ledger.MaterialLedger{}, models.Summary{}, err
	}

	s.warnShortfalls(l)
	return l, l.Summary(), nil
}

// WeeklyLedger returns the daily entries and totals of one ISO week.
func (s *Service) WeeklyLedger(ctx context.Context, material models.MaterialType, year, week int) (models.WeeklyLedger, error) {
	start, end, err := ledger.ISOWeekRange(year, week)
	if err != nil {
		return models.WeeklyLedger{}, err
	}

	key := cache.Key(material, fmt.Sprintf("weekly:%d-W%02d", year, week))
	var cached models.WeeklyLedger
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}
	version, cacheable := s.version(ctx, material)

	l, summary, err := s.Ledger(ctx, material, start, end)
	if err != nil {
		return models.WeeklyLedger{}, err
	}

	result := models.WeeklyLedger{
		MaterialType: material,
		Year:         year,
		Week:         week,
		DailyData:    l.Entries,
		Totals:       summary,
	}
	if cacheable {
		s.remember(ctx, material, version, key, result)
	}
	return result, nil
}

// MonthlyLedger returns count consecutive month summaries ending at (year, month), oldest first.
func (s *Service) MonthlyLedger(ctx context.Context, material models.MaterialType, year int, month time.Month, count int) (models.MonthlyLedger, error) {
	if count > MaxMonthCount {
		return models.MonthlyLedger{}, fmt.Errorf("%w: month count %d exceeds %d", ledger.ErrInvalidPeriod, count, MaxMonthCount)
	}

	months, err := ledger.TrailingMonths(year, month, count)
	if err != nil {
		return models.MonthlyLedger{}, err
	}

	key := cache.Key(material, fmt.Sprintf("monthly:%d-%02d:%d", year, month, count))
	var cached models.MonthlyLedger
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}
	version, cacheable := s.version(ctx, material)

	_, end, err := ledger.MonthRange(year, month)
	if err != nil {
		return models.MonthlyLedger{}, err
	}

	full, _, err := s.Ledger(ctx, material, months[0], end)
	if err != nil {
		return models.MonthlyLedger{}, err
	}

	result := models.MonthlyLedger{MaterialType: material, MonthlySummaries: make([]models.MonthSummary, 0, len(months))}
	for _, first := range months {
		monthStart, monthEnd, err := ledger.MonthRange(first.Year(), first.Month())
		if err != nil {
			return models.MonthlyLedger{}, err
		}
		window, err := full.Window(monthStart, monthEnd)
		if err != nil {
			return models.MonthlyLedger{}, err
		}
		result.MonthlySummaries = append(result.MonthlySummaries, models.MonthSummary{
			Year:    first.Year(),
			Month:   first.Month(),
			Summary: window.Summary(),
		})
	}

	if cacheable {
		s.remember(ctx, material, version, key, result)
	}
	return result, nil
}

// WeeklyDigest renders a text report of every tracked material for the ISO
// week containing at.
func (s *Service) WeeklyDigest(ctx context.Context, at time.Time) (string, error) {
	year, week := at.ISOWeek()
	start, end, err := ledger.ISOWeekRange(year, week)
	if err != nil {
		return "", err
	}

	results := make([]models.WeeklyLedger, len(s.materials))
	g, gctx := errgroup.WithContext(ctx)
	for i, material := range s.materials {
		i, material := i, material
		g.Go(func() error {
			weekly, err := s.WeeklyLedger(gctx, material, year, week)
			if err != nil {
				return fmt.Errorf("weekly %s: %w", material, err)
			}
			results[i] = weekly
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(s.printer.Sprintf("Material ledger %d-W%02d (%s - %s)\n", year, week, start.Format(ledger.DateLayout), end.Format(ledger.DateLayout)))
	for _, weekly := range results {
		t := weekly.Totals
		b.WriteString(s.printer.Sprintf("- %s: in %.2f, out %.2f, closing %.2f, efficiency %.2f%%, profit %.0f\n",
			weekly.MaterialType,
			t.TotalInput.InexactFloat64(),
			t.TotalOutput.InexactFloat64(),
			t.ClosingBalance.InexactFloat64(),
			t.ProcessingEfficiency.InexactFloat64(),
			t.Profit.InexactFloat64(),
		))
		if t.ShortfallDays > 0 {
			b.WriteString(s.printer.Sprintf("  shortfall on %d day(s), %.2f unaccounted\n", t.ShortfallDays, t.TotalShortfall.InexactFloat64()))
		}
		if t.RecordedDays == 0 {
			b.WriteString("  no entries this week\n")
		}
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Service) lookup(ctx context.Context, key string, dest interface{}) bool {
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("summary cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

// version must be read before the history is loaded so that a write landing
// in between makes the later Set fail instead of caching the old view.
func (s *Service) version(ctx context.Context, material models.MaterialType) (int64, bool) {
	version, err := s.cache.Version(ctx, material)
	if err != nil {
		s.logger.Warn("summary cache version read failed", zap.String("material", string(material)), zap.Error(err))
		return 0, false
	}
	return version, true
}

func (s *Service) remember(ctx context.Context, material models.MaterialType, version int64, key string, value interface{}) {
	err := s.cache.Set(ctx, material, version, key, value)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrStale):
		s.logger.Debug("skipping stale summary cache write", zap.String("key", key))
	default:
		s.logger.Warn("summary cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) warnShortfalls(l ledger.MaterialLedger) {
	for _, entry := range l.Entries {
		if !entry.Shortfall.IsPositive() {
			continue
		}
		s.logger.Warn("output exceeds available stock, balance clamped to zero",
			zap.String("material", string(l.Material)),
			zap.String("date", entry.Record.Date.Format(ledger.DateLayout)),
			zap.String("shortfall", entry.Shortfall.String()),
		)
	}
}

package entries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/cache"
	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/ledger"
	"github.com/mamadbah2/stationledger/internal/repository"
)

// ErrInvalidArguments indicates the command or patch payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid arguments")

// ErrUnsupportedCommand indicates we do not support the requested command.
var ErrUnsupportedCommand = errors.New("unsupported command")

const helpText = `Commands:
/entry <material> <input> <output> [note]
/price <material> <input price> <output price>
/stock <material>
Materials: %s`

// Reporter is the part of the reporting service used to answer commands.
type Reporter interface {
	ResolveMaterial(raw string) (models.MaterialType, error)
	Materials() []models.MaterialType
	WeeklyLedger(ctx context.Context, material models.MaterialType, year, week int) (models.WeeklyLedger, error)
}

// Service records daily entries and executes station-manager commands.
type Service struct {
	store     repository.RecordStore
	cache     cache.SummaryCache
	reporting Reporter
	validate  *validator.Validate
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewService constructs the entry service. Command dates are taken in loc.
func NewService(store repository.RecordStore, summaryCache cache.SummaryCache, reporting Reporter, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if summaryCache == nil {
		summaryCache = cache.NopCache{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:     store,
		cache:     summaryCache,
		reporting: reporting,
		validate:  newValidator(),
		location:  loc,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordEntry validates and stores a partial edit of one daily record, then
// drops the cached views of the material.
func (s *Service) RecordEntry(ctx context.Context, material models.MaterialType, date time.Time, patch models.RecordPatch) (models.DailyMaterialRecord, error) {
	if err := ledger.CheckRecordDay(date); err != nil {
		return models.DailyMaterialRecord{}, err
	}
	if err := s.validate.Struct(patch); err != nil {
		return models.DailyMaterialRecord{}, translateValidation(err)
	}
	if patch.IsEmpty() {
		return models.DailyMaterialRecord{}, fmt.Errorf("%w: nothing to update", ErrInvalidArguments)
	}

	day := ledger.Day(date)
	record, err := s.store.UpsertRecord(ctx, day, material, patch)
	if err != nil {
		return models.DailyMaterialRecord{}, fmt.Errorf("upsert %s %s: %w", material, day.Format(ledger.DateLayout), err)
	}

	if err := s.cache.Invalidate(ctx, material); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.String("material", string(material)), zap.Error(err))
	}

	s.logger.Info("daily record saved",
		zap.String("material", string(material)),
		zap.String("date", day.Format(ledger.DateLayout)),
		zap.String("input", record.InputQuantity.String()),
		zap.String("output", record.OutputQuantity.String()),
	)
	return record, nil
}

// GetEntry returns the stored record, or a zero record and false when the day
// has no entry.
func (s *Service) GetEntry(ctx context.Context, material models.MaterialType, date time.Time) (models.DailyMaterialRecord, bool, error) {
	day := ledger.Day(date)
	record, err := s.store.GetRecord(ctx, day, material)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return models.DailyMaterialRecord{Date: day, MaterialType: material}, false, nil
	}
	if err != nil {
		return models.DailyMaterialRecord{}, false, fmt.Errorf("get %s %s: %w", material, day.Format(ledger.DateLayout), err)
	}
	return record, true, nil
}

// HandleCommand executes a parsed command and returns the reply text.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	today := ledger.Day(s.now().In(s.location))

	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	switch cmd.Type {
	case models.CommandEntry:
		if len(cmd.Args) < 3 {
			return "", fmt.Errorf("%w: /entry <material> <input> <output> [note]", ErrInvalidArguments)
		}
		material, err := s.reporting.ResolveMaterial(cmd.Args[0])
		if err != nil {
			return "", err
		}
		input, err := parseQuantity(cmd.Args[1])
		if err != nil {
			return "", err
		}
		output, err := parseQuantity(cmd.Args[2])
		if err != nil {
			return "", err
		}
		patch := models.RecordPatch{Input: &input, Output: &output}
		if len(cmd.Args) > 3 {
			note := strings.Join(cmd.Args[3:], " ")
			patch.Note = &note
		}

		record, err := s.RecordEntry(ctx, material, today, patch)
		if err != nil {
			return "", err
		}
		message := fmt.Sprintf("Saved %s for %s: in %s, out %s.", material, today.Format(ledger.DateLayout), record.InputQuantity, record.OutputQuantity)
		if remaining := s.remainingOn(ctx, material, today); remaining != "" {
			message += " Remaining " + remaining + "."
		}
		return message, nil
	case models.CommandPrice:
		if len(cmd.Args) < 3 {
			return "", fmt.Errorf("%w: /price <material> <input price> <output price>", ErrInvalidArguments)
		}
		material, err := s.reporting.ResolveMaterial(cmd.Args[0])
		if err != nil {
			return "", err
		}
		priceIn, err := parseQuantity(cmd.Args[1])
		if err != nil {
			return "", err
		}
		priceOut, err := parseQuantity(cmd.Args[2])
		if err != nil {
			return "", err
		}

		if _, err := s.RecordEntry(ctx, material, today, models.RecordPatch{UnitPriceInput: &priceIn, UnitPriceOutput: &priceOut}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Prices for %s on %s: in %s, out %s.", material, today.Format(ledger.DateLayout), priceIn, priceOut), nil
	case models.CommandStock:
		if len(cmd.Args) < 1 {
			return "", fmt.Errorf("%w: /stock <material>", ErrInvalidArguments)
		}
		material, err := s.reporting.ResolveMaterial(cmd.Args[0])
		if err != nil {
			return "", err
		}
		year, week := today.ISOWeek()
		weekly, err := s.reporting.WeeklyLedger(ctx, material, year, week)
		if err != nil {
			return "", err
		}
		t := weekly.Totals
		return fmt.Sprintf("%s %d-W%02d: opening %s, in %s, out %s, remaining %s, efficiency %s%%.",
			material, year, week, t.OpeningBalance, t.TotalInput, t.TotalOutput, closingUpTo(weekly, today), t.ProcessingEfficiency), nil
	case models.CommandHelp:
		names := make([]string, 0)
		for _, m := range s.reporting.Materials() {
			names = append(names, string(m))
		}
		return fmt.Sprintf(helpText, strings.Join(names, ", ")), nil
	default:
		return "", ErrUnsupportedCommand
	}
}

// remainingOn is best effort: the entry is already saved when it runs.
func (s *Service) remainingOn(ctx context.Context, material models.MaterialType, day time.Time) string {
	year, week := day.ISOWeek()
	weekly, err := s.reporting.WeeklyLedger(ctx, material, year, week)
	if err != nil {
		s.logger.Debug("weekly summary failed", zap.Error(err))
		return ""
	}
	return closingUpTo(weekly, day)
}

func closingUpTo(weekly models.WeeklyLedger, day time.Time) string {
	remaining := weekly.Totals.OpeningBalance
	for _, entry := range weekly.DailyData {
		if entry.Record.Date.After(day) {
			break
		}
		remaining = entry.Remaining
	}
	return remaining.String()
}

func parseQuantity(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a number", ErrInvalidArguments, raw)
	}
	return value, nil
}

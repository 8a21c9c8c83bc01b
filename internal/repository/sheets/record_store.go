package sheets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/ledger"
	"github.com/mamadbah2/stationledger/internal/repository"
)

const (
	// Row 1 holds the headers; data starts at row 2.
	firstDataRow = 2
	lastColumn   = "I"
	timeLayout   = time.RFC3339
)

// RecordStore keeps daily records as rows of a single ledger tab:
// date | material | input | output | price in | price out | note | created | updated.
type RecordStore struct {
	sheet  Sheet
	tab    string
	logger *zap.Logger
	now    func() time.Time
	// serializes read-modify-write upserts issued by this process
	mu sync.Mutex
}

// Verify interface compliance
var _ repository.RecordStore = (*RecordStore)(nil)

// NewRecordStore builds a record store on top of a spreadsheet tab.
func NewRecordStore(sheet Sheet, tab string, logger *zap.Logger) *RecordStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tab == "" {
		tab = "Ledger"
	}
	return &RecordStore{sheet: sheet, tab: tab, logger: logger, now: time.Now}
}

type indexedRecord struct {
	row    int
	record models.DailyMaterialRecord
}

func (s *RecordStore) dataRange() string {
	return fmt.Sprintf("%s!A%d:%s", s.tab, firstDataRow, lastColumn)
}

func (s *RecordStore) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", s.tab, row, lastColumn, row)
}

func (s *RecordStore) load(ctx context.Context, material models.MaterialType) ([]indexedRecord, error) {
	rows, err := s.sheet.ReadRange(ctx, s.dataRange())
	if err != nil {
		return nil, fmt.Errorf("load ledger tab: %w", err)
	}

	var records []indexedRecord
	for i, row := range rows {
		rec, err := decodeRow(row)
		if err != nil {
			s.logger.Debug("skip ledger row", zap.Int("row", i+firstDataRow), zap.Error(err))
			continue
		}
		if rec.MaterialType != material {
			continue
		}
		records = append(records, indexedRecord{row: i + firstDataRow, record: rec})
	}
	return records, nil
}

// GetRecord returns the record of one material for one day.
func (s *RecordStore) GetRecord(ctx context.Context, date time.Time, material models.MaterialType) (models.DailyMaterialRecord, error) {
	records, err := s.load(ctx, material)
	if err != nil {
		return models.DailyMaterialRecord{}, err
	}

	day := ledger.Day(date)
	for _, ir := range records {
		if ir.record.Date.Equal(day) {
			return ir.record, nil
		}
	}
	return models.DailyMaterialRecord{}, repository.ErrRecordNotFound
}

// UpsertRecord rewrites the matching row in place or appends a new one.
func (s *RecordStore) UpsertRecord(ctx context.Context, date time.Time, material models.MaterialType, patch models.RecordPatch) (models.DailyMaterialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx, material)
	if err != nil {
		return models.DailyMaterialRecord{}, err
	}

	day := ledger.Day(date)
	now := s.now().UTC().Truncate(time.Second)

	row := 0
	rec := models.DailyMaterialRecord{Date: day, MaterialType: material, CreatedAt: now}
	for _, ir := range records {
		if ir.record.Date.Equal(day) {
			row, rec = ir.row, ir.record
			break
		}
	}

	patch.Apply(&rec)
	rec.UpdatedAt = now

	if row == 0 {
		err = s.sheet.WriteRow(ctx, s.dataRange(), encodeRow(rec))
	} else {
		err = s.sheet.UpdateRow(ctx, s.rowRange(row), encodeRow(rec))
	}
	if err != nil {
		return models.DailyMaterialRecord{}, err
	}
	return rec, nil
}

// QueryRange returns the material's records within [start, end], oldest first.
func (s *RecordStore) QueryRange(ctx context.Context, material models.MaterialType, start, end time.Time) ([]models.DailyMaterialRecord, error) {
	records, err := s.load(ctx, material)
	if err != nil {
		return nil, err
	}

	start, end = ledger.Day(start), ledger.Day(end)
	var result []models.DailyMaterialRecord
	for _, ir := range records {
		if ir.record.Date.Before(start) || ir.record.Date.After(end) {
			continue
		}
		result = append(result, ir.record)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// Close is a no-op; the Sheets client holds no connection.
func (s *RecordStore) Close(context.Context) error {
	return nil
}

func encodeRow(rec models.DailyMaterialRecord) []interface{} {
	return []interface{}{
		ledger.Day(rec.Date).Format(ledger.DateLayout),
		string(rec.MaterialType),
		rec.InputQuantity.String(),
		rec.OutputQuantity.String(),
		rec.UnitPriceInput.String(),
		rec.UnitPriceOutput.String(),
		rec.Note,
		rec.CreatedAt.Format(timeLayout),
		rec.UpdatedAt.Format(timeLayout),
	}
}

func decodeRow(row []interface{}) (models.DailyMaterialRecord, error) {
	if len(row) < 4 {
		return models.DailyMaterialRecord{}, fmt.Errorf("row has %d cells", len(row))
	}

	date, err := ledger.ParseDay(cell(row, 0))
	if err != nil {
		return models.DailyMaterialRecord{}, err
	}

	rec := models.DailyMaterialRecord{
		Date:         date,
		MaterialType: models.MaterialType(cell(row, 1)),
		Note:         cell(row, 6),
	}

	targets := []*decimal.Decimal{&rec.InputQuantity, &rec.OutputQuantity, &rec.UnitPriceInput, &rec.UnitPriceOutput}
	for i, target := range targets {
		value, err := parseDecimal(cell(row, i+2))
		if err != nil {
			return models.DailyMaterialRecord{}, fmt.Errorf("column %d: %w", i+3, err)
		}
		*target = value
	}

	if t, err := time.Parse(timeLayout, cell(row, 7)); err == nil {
		rec.CreatedAt = t.UTC()
	}
	if t, err := time.Parse(timeLayout, cell(row, 8)); err == nil {
		rec.UpdatedAt = t.UTC()
	}

	return rec, nil
}

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func parseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	// Sheets may render thousands separators when a user edits a cell by hand.
	return decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
}

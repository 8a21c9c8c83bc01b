package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/ledger"
	"github.com/mamadbah2/stationledger/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_material_records (
	material_type     TEXT     NOT NULL,
	record_date       TEXT     NOT NULL,
	input_quantity    TEXT     NOT NULL DEFAULT '0',
	output_quantity   TEXT     NOT NULL DEFAULT '0',
	unit_price_input  TEXT     NOT NULL DEFAULT '0',
	unit_price_output TEXT     NOT NULL DEFAULT '0',
	note              TEXT     NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	PRIMARY KEY (material_type, record_date)
)`

const selectColumns = `material_type, record_date, input_quantity, output_quantity,
	unit_price_input, unit_price_output, note, created_at, updated_at`

const upsertQuery = `
INSERT INTO daily_material_records (` + selectColumns + `)
VALUES (:material_type, :record_date, :input_quantity, :output_quantity,
	:unit_price_input, :unit_price_output, :note, :created_at, :updated_at)
ON CONFLICT (material_type, record_date) DO UPDATE SET
	input_quantity    = excluded.input_quantity,
	output_quantity   = excluded.output_quantity,
	unit_price_input  = excluded.unit_price_input,
	unit_price_output = excluded.unit_price_output,
	note              = excluded.note,
	updated_at        = excluded.updated_at`

type recordRow struct {
	MaterialType    string          `db:"material_type"`
	RecordDate      string          `db:"record_date"`
	InputQuantity   decimal.Decimal `db:"input_quantity"`
	OutputQuantity  decimal.Decimal `db:"output_quantity"`
	UnitPriceInput  decimal.Decimal `db:"unit_price_input"`
	UnitPriceOutput decimal.Decimal `db:"unit_price_output"`
	Note            string          `db:"note"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (row recordRow) toModel() (models.DailyMaterialRecord, error) {
	date, err := ledger.ParseDay(row.RecordDate)
	if err != nil {
		return models.DailyMaterialRecord{}, fmt.Errorf("decode record_date: %w", err)
	}
	return models.DailyMaterialRecord{
		Date:            date,
		MaterialType:    models.MaterialType(row.MaterialType),
		InputQuantity:   row.InputQuantity,
		OutputQuantity:  row.OutputQuantity,
		UnitPriceInput:  row.UnitPriceInput,
		UnitPriceOutput: row.UnitPriceOutput,
		Note:            row.Note,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, nil
}

func fromModel(rec models.DailyMaterialRecord) recordRow {
	return recordRow{
		MaterialType:    string(rec.MaterialType),
		RecordDate:      ledger.Day(rec.Date).Format(ledger.DateLayout),
		InputQuantity:   rec.InputQuantity,
		OutputQuantity:  rec.OutputQuantity,
		UnitPriceInput:  rec.UnitPriceInput,
		UnitPriceOutput: rec.UnitPriceOutput,
		Note:            rec.Note,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

// Repository stores daily records in a local SQLite file.
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// Verify interface compliance
var _ repository.RecordStore = (*Repository)(nil)

// NewRepository opens (or creates) the SQLite database at path and ensures the schema.
func NewRepository(ctx context.Context, path string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("sqlite record store ready", zap.String("path", path))
	return &Repository{db: db, logger: logger, now: time.Now}, nil
}

// GetRecord returns the record of one material for one day.
func (r *Repository) GetRecord(ctx context.Context, date time.Time, material models.MaterialType) (models.DailyMaterialRecord, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+selectColumns+` FROM daily_material_records WHERE material_type = ? AND record_date = ?`,
		string(material), ledger.Day(date).Format(ledger.DateLayout))
	if errors.Is(err, sql.ErrNoRows) {
		return models.DailyMaterialRecord{}, repository.ErrRecordNotFound
	}
	if err != nil {
		return models.DailyMaterialRecord{}, fmt.Errorf("select record: %w", err)
	}
	return row.toModel()
}

// UpsertRecord merges the patch into the existing row, or inserts it, in one transaction.
func (r *Repository) UpsertRecord(ctx context.Context, date time.Time, material models.MaterialType, patch models.RecordPatch) (models.DailyMaterialRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.DailyMaterialRecord{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	day := ledger.Day(date)
	now := r.now().UTC()

	var row recordRow
	err = tx.GetContext(ctx, &row,
		`SELECT `+selectColumns+` FROM daily_material_records WHERE material_type = ? AND record_date = ?`,
		string(material), day.Format(ledger.DateLayout))

	var rec models.DailyMaterialRecord
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec = models.DailyMaterialRecord{Date: day, MaterialType: material, CreatedAt: now}
	case err != nil:
		return models.DailyMaterialRecord{}, fmt.Errorf("select record for upsert: %w", err)
	default:
		if rec, err = row.toModel(); err != nil {
			return models.DailyMaterialRecord{}, err
		}
	}

	patch.Apply(&rec)
	rec.UpdatedAt = now

	if _, err := tx.NamedExecContext(ctx, upsertQuery, fromModel(rec)); err != nil {
		return models.DailyMaterialRecord{}, fmt.Errorf("upsert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.DailyMaterialRecord{}, fmt.Errorf("commit upsert: %w", err)
	}

	r.logger.Debug("record upserted", zap.String("material", string(material)), zap.String("date", day.Format(ledger.DateLayout)))
	return rec, nil
}

// QueryRange returns the material's records within [start, end], oldest first.
func (r *Repository) QueryRange(ctx context.Context, material models.MaterialType, start, end time.Time) ([]models.DailyMaterialRecord, error) {
	var rows []recordRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+selectColumns+` FROM daily_material_records
		WHERE material_type = ? AND record_date BETWEEN ? AND ?
		ORDER BY record_date ASC`,
		string(material), ledger.Day(start).Format(ledger.DateLayout), ledger.Day(end).Format(ledger.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}

	records := make([]models.DailyMaterialRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the database handle.
func (r *Repository) Close(context.Context) error {
	return r.db.Close()
}

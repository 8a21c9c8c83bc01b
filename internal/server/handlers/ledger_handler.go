package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/ledger"
	"github.com/mamadbah2/stationledger/internal/service/entries"
	"github.com/mamadbah2/stationledger/internal/service/reporting"
)

// LedgerService answers the read side of the material ledger.
type LedgerService interface {
	ResolveMaterial(raw string) (models.MaterialType, error)
	WeeklyLedger(ctx context.Context, material models.MaterialType, year, week int) (models.WeeklyLedger, error)
	MonthlyLedger(ctx context.Context, material models.MaterialType, year int, month time.Month, count int) (models.MonthlyLedger, error)
}

// EntryService stores and reads single daily records.
type EntryService interface {
	RecordEntry(ctx context.Context, material models.MaterialType, date time.Time, patch models.RecordPatch) (models.DailyMaterialRecord, error)
	GetEntry(ctx context.Context, material models.MaterialType, date time.Time) (models.DailyMaterialRecord, bool, error)
}

// LedgerHandler exposes the material ledger over HTTP.
type LedgerHandler struct {
	ledger   LedgerService
	entries  EntryService
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewLedgerHandler constructs the HTTP handler adapter. Default periods are
// resolved in loc.
func NewLedgerHandler(ledgerSvc LedgerService, entrySvc EntryService, loc *time.Location, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerHandler{ledger: ledgerSvc, entries: entrySvc, location: loc, logger: logger, now: time.Now}
}

type recordResponse struct {
	Record   models.DailyMaterialRecord `json:"record"`
	Recorded bool                       `json:"recorded"`
}

// Weekly returns the daily entries and totals of one ISO week.
func (h *LedgerHandler) Weekly(c *gin.Context) {
	material, ok := h.material(c)
	if !ok {
		return
	}

	year, week := h.now().In(h.location).ISOWeek()
	year, ok = queryInt(c, "year", year)
	if !ok {
		return
	}
	week, ok = queryInt(c, "week", week)
	if !ok {
		return
	}

	result, err := h.ledger.WeeklyLedger(c.Request.Context(), material, year, week)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Monthly returns monthCount consecutive month summaries ending at the requested month.
func (h *LedgerHandler) Monthly(c *gin.Context) {
	material, ok := h.material(c)
	if !ok {
		return
	}

	now := h.now().In(h.location)
	year, ok := queryInt(c, "year", now.Year())
	if !ok {
		return
	}
	month, ok := queryInt(c, "month", int(now.Month()))
	if !ok {
		return
	}
	count, ok := queryInt(c, "monthCount", 1)
	if !ok {
		return
	}
	if count > reporting.MaxMonthCount {
		count = reporting.MaxMonthCount
	}

	result, err := h.ledger.MonthlyLedger(c.Request.Context(), material, year, time.Month(month), count)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRecord returns one daily record; days without an entry answer with a zero record.
func (h *LedgerHandler) GetRecord(c *gin.Context) {
	material, ok := h.material(c)
	if !ok {
		return
	}
	date, err := ledger.ParseRecordDay(c.Param("date"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	record, recorded, err := h.entries.GetEntry(c.Request.Context(), material, date)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, recordResponse{Record: record, Recorded: recorded})
}

// PatchRecord applies a partial edit to one daily record.
func (h *LedgerHandler) PatchRecord(c *gin.Context) {
	material, ok := h.material(c)
	if !ok {
		return
	}
	date, err := ledger.ParseRecordDay(c.Param("date"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var patch models.RecordPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.logger.Warn("invalid patch payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	record, err := h.entries.RecordEntry(c.Request.Context(), material, date, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, recordResponse{Record: record, Recorded: true})
}

func (h *LedgerHandler) material(c *gin.Context) (models.MaterialType, bool) {
	material, err := h.ledger.ResolveMaterial(c.Param("materialType"))
	if err != nil {
		h.writeError(c, err)
		return "", false
	}
	return material, true
}

func (h *LedgerHandler) writeError(c *gin.Context, err error) {
	var ve *entries.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Err.Error(), "fields": ve.Fields})
	case errors.Is(err, models.ErrUnknownMaterial):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidPeriod),
		errors.Is(err, ledger.ErrNegativeQuantity),
		errors.Is(err, ledger.ErrNegativePrice),
		errors.Is(err, entries.ErrInvalidArguments):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("ledger request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer"})
		return 0, false
	}
	return value, true
}

package ledger

import (
	"fmt"
	"time"

	"github.com/mamadbah2/stationledger/internal/domain/models"
)

// DateLayout is the wire and storage format of ledger days.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a ledger day.
func ParseDay(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidPeriod, value)
	}
	return t, nil
}

// Record dates outside [EarliestDay, LatestDay] are rejected on write.
var (
	EarliestDay = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	LatestDay   = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// CheckRecordDay rejects days outside the accepted record window.
func CheckRecordDay(t time.Time) error {
	day := Day(t)
	if day.Before(EarliestDay) || day.After(LatestDay) {
		return fmt.Errorf("%w: date %s outside %s..%s", ErrInvalidPeriod,
			day.Format(DateLayout), EarliestDay.Format(DateLayout), LatestDay.Format(DateLayout))
	}
	return nil
}

// ParseRecordDay parses a YYYY-MM-DD string and checks it against the record window.
func ParseRecordDay(value string) (time.Time, error) {
	day, err := ParseDay(value)
	if err != nil {
		return time.Time{}, err
	}
	if err := CheckRecordDay(day); err != nil {
		return time.Time{}, err
	}
	return day, nil
}

// DaysBetween counts whole calendar days from a to b. It does not go through
// time.Duration, which saturates after roughly 292 years.
func DaysBetween(a, b time.Time) int {
	return int((Day(b).Unix() - Day(a).Unix()) / 86400)
}

// MondayStart returns the Monday of the week containing t.
func MondayStart(t time.Time) time.Time {
	day := Day(t)
	daysSinceMonday := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -daysSinceMonday)
}

// WeeksInYear returns 52 or 53 following ISO 8601.
func WeeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// ISOWeekRange returns Monday and Sunday of the given ISO week.
func ISOWeekRange(year, week int) (time.Time, time.Time, error) {
	if week < 1 || week > WeeksInYear(year) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: week %d of %d", ErrInvalidPeriod, week, year)
	}

	start := MondayStart(time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)).AddDate(0, 0, (week-1)*7)
	return start, start.AddDate(0, 0, 6), nil
}

// MonthRange returns the first and last day of a calendar month.
func MonthRange(year int, month time.Month) (time.Time, time.Time, error) {
	if month < time.January || month > time.December {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1), nil
}

// TrailingMonths returns the first day of count consecutive months ending at
// (year, month), oldest first.
func TrailingMonths(year int, month time.Month, count int) ([]time.Time, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: month count %d", ErrInvalidPeriod, count)
	}

	last, _, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}

	months := make([]time.Time, count)
	for i := 0; i < count; i++ {
		months[i] = last.AddDate(0, i-count+1, 0)
	}
	return months, nil
}

// ZeroFill returns one ledger entry per calendar day in [start, end]. Days
// without a record get an explicit zero-activity record marked as not recorded.
func ZeroFill(records []models.DailyMaterialRecord, material models.MaterialType, start, end time.Time) ([]models.LedgerEntry, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s after %s", ErrInvalidPeriod, start.Format(DateLayout), end.Format(DateLayout))
	}

	byDay := make(map[time.Time]models.DailyMaterialRecord, len(records))
	for _, rec := range records {
		day := Day(rec.Date)
		if _, dup := byDay[day]; dup {
			return nil, fmt.Errorf("%w: duplicate %s record on %s", ErrInvalidRecordOrder, material, day.Format(DateLayout))
		}
		byDay[day] = rec
	}

	entries := make([]models.LedgerEntry, 0, DaysBetween(start, end)+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		rec, ok := byDay[day]
		if !ok {
			rec = models.DailyMaterialRecord{MaterialType: material}
		}
		rec.Date = day
		entries = append(entries, models.LedgerEntry{Record: rec, Recorded: ok})
	}

	return entries, nil
}

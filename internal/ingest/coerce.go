package ingest

import (
	"strconv"
	"strings"
	"time"
)

// excelEpochOffset is the number of days between the Excel epoch
// (1899-12-30) and the Unix epoch (1970-01-01).
const excelEpochOffset = 25569

// excelSerialMax corresponds to 9999-12-31 in Excel serial form.
const excelSerialMax = 2958465

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
}

// ParseDateValue interprets a cell value as a date: a numeric Excel serial
// (days since 1899-12-30) or a string in one of the locale layouts.
func ParseDateValue(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if serial < 1 || serial > excelSerialMax {
			return time.Time{}, false
		}
		ms := int64((serial - excelEpochOffset) * 86400000)
		return time.UnixMilli(ms).UTC(), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// CoerceDate converts a raw cell value to an ISO-8601 timestamp, or a
// date-only string when stripTime is set. Unparseable values pass through
// unchanged: the coercion is advisory, not validating, so dirty source data
// never blocks an import.
func CoerceDate(raw string, stripTime bool) string {
	t, ok := ParseDateValue(raw)
	if !ok {
		return raw
	}
	if stripTime {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

// StripTime zeroes the time-of-day components.
func StripTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// serialEpochOffset is the 1900-system serial of 1970-01-01. It already
	// absorbs the fictitious 1900-02-29 the format counts.
	serialEpochOffset = 25569
	secondsPerDay     = 86400
	// maxSerial is 9999-12-31, the last date the format can represent.
	maxSerial = 2958465
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006.01.02",
	"2006.1.2",
	"2006年1月2日",
	"20060102",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// SerialToDate converts a spreadsheet day serial to a civil date:
// epoch + (serial - 25569) * 86400s. The fractional time of day is dropped.
func SerialToDate(serial float64) time.Time {
	days := int64(math.Floor(serial))
	return civil(time.Unix((days-serialEpochOffset)*secondsPerDay, 0).UTC())
}

// CoerceDate accepts a native time, a day serial, or a date string.
// Blank input yields (nil, nil); anything unparsable is an error.
func CoerceDate(v any) (*time.Time, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if x.IsZero() {
			return nil, nil
		}
		t := civil(x)
		return &t, nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return CoerceDate(*x)
	case float64:
		return serialDate(x)
	case float32:
		return serialDate(float64(x))
	case int:
		return serialDate(float64(x))
	case int64:
		return serialDate(float64(x))
	case string:
		return parseDateString(x)
	default:
		return nil, fmt.Errorf("unsupported date value of type %T", v)
	}
}

func serialDate(serial float64) (*time.Time, error) {
	if serial < 1 || serial > maxSerial || math.IsNaN(serial) {
		return nil, fmt.Errorf("date serial %v out of range", serial)
	}
	t := SerialToDate(serial)
	return &t, nil
}

func parseDateString(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 1 && f <= maxSerial {
		return serialDate(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			c := civil(t)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

// civil keeps the calendar date of t as midnight UTC.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var amountReplacer = strings.NewReplacer(
	",", "",
	"，", "",
	"NT$", "",
	"$", "",
	"元", "",
	" ", "",
)

// CoerceAmount parses a numeric-or-string amount. Blank or non-numeric
// values are 0; the amount column is frequently left empty.
func CoerceAmount(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		s := amountReplacer.Replace(strings.TrimSpace(x))
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

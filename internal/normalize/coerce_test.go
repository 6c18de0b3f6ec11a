package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSerialToDate(t *testing.T) {
	tests := []struct {
		serial float64
		want   time.Time
	}{
		{25569, date(1970, 1, 1)},
		{45292, date(2024, 1, 1)},
		{45292.75, date(2024, 1, 1)},
		{61, date(1900, 3, 1)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SerialToDate(tt.serial), "serial %v", tt.serial)
	}
}

func TestCoerceDate(t *testing.T) {
	taipei := time.FixedZone("CST", 8*3600)
	tests := []struct {
		name string
		in   any
		want *time.Time
	}{
		{"nil", nil, nil},
		{"blank", "  ", nil},
		{"native", time.Date(2024, 3, 5, 23, 30, 0, 0, taipei), ptr(date(2024, 3, 5))},
		{"serial number", float64(45292), ptr(date(2024, 1, 1))},
		{"serial text", "45292", ptr(date(2024, 1, 1))},
		{"iso", "2024-03-05", ptr(date(2024, 3, 5))},
		{"slashes", "2024/3/5", ptr(date(2024, 3, 5))},
		{"chinese", "2024年3月5日", ptr(date(2024, 3, 5))},
		{"compact", "20240305", ptr(date(2024, 3, 5))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceDateRejects(t *testing.T) {
	for _, in := range []any{"next tuesday", "2024-13-45", float64(0), float64(-3), true} {
		_, err := CoerceDate(in)
		assert.Error(t, err, "input %v", in)
	}
}

func TestCoerceAmount(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{"NT$1,200", 1200},
		{"1，500 元", 1500},
		{"$ 99.5", 99.5},
		{"", 0},
		{"n/a", 0},
		{nil, 0},
		{3, 3},
		{float64(4200), 4200},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CoerceAmount(tt.in), "input %v", tt.in)
	}
}

func ptr(t time.Time) *time.Time { return &t }

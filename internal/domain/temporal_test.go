package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestDecomposeTime(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want TimeParts
	}{
		{
			name: "midweek afternoon",
			in:   time.Date(2023, 7, 4, 15, 30, 0, 0, time.UTC), // a Tuesday
			want: TimeParts{Hour: 15, Day: 4, Weekday: 1, Month: 7, Year: 2023},
		},
		{
			name: "monday is zero",
			in:   time.Date(2023, 7, 3, 0, 0, 0, 0, time.UTC),
			want: TimeParts{Hour: 0, Day: 3, Weekday: 0, Month: 7, Year: 2023},
		},
		{
			name: "sunday is six",
			in:   time.Date(2023, 7, 9, 23, 59, 0, 0, time.UTC),
			want: TimeParts{Hour: 23, Day: 9, Weekday: 6, Month: 7, Year: 2023},
		},
		{
			name: "year boundary",
			in:   time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC),
			want: TimeParts{Hour: 23, Day: 31, Weekday: 6, Month: 12, Year: 2023},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecomposeTime(tt.in))
		})
	}
}

func TestEnrichTemporal(t *testing.T) {
	t.Run("fills clock from primary time", func(t *testing.T) {
		rec := CanonicalRecord{PrimaryTime: time.Date(2023, 7, 4, 15, 30, 0, 0, time.UTC)}
		EnrichTemporal(&rec)
		assert.Equal(t, TimeParts{Hour: 15, Day: 4, Weekday: 1, Month: 7, Year: 2023}, rec.Clock)
	})

	t.Run("idempotent", func(t *testing.T) {
		rec := CanonicalRecord{PrimaryTime: time.Date(2023, 7, 4, 15, 30, 0, 0, time.UTC)}
		EnrichTemporal(&rec)
		first := rec.Clock
		EnrichTemporal(&rec)
		assert.Equal(t, first, rec.Clock)
	})

	t.Run("zero primary time leaves clock empty", func(t *testing.T) {
		rec := CanonicalRecord{}
		EnrichTemporal(&rec)
		assert.Equal(t, TimeParts{}, rec.Clock)
	})
}

func TestDefaultWindow(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2023, 7, 11, 9, 0, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(clockwork.NewRealClock()) })

	w := DefaultWindow()
	assert.Equal(t, time.Date(2023, 7, 4, 9, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2023, 7, 11, 9, 0, 0, 0, time.UTC), w.End)
}

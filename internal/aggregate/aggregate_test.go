package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(amount string, ts time.Time) Record {
	return Record{Amount: decimal.RequireFromString(amount), Timestamp: ts}
}

func TestMonthlyZeroFilled(t *testing.T) {
	periods := Monthly(2024, nil)

	require.Len(t, periods, 12)
	assert.Equal(t, "January 2024", periods[0].Label)
	assert.Equal(t, "December 2024", periods[11].Label)
	for _, p := range periods {
		assert.True(t, p.Total.IsZero())
		assert.Zero(t, p.Count)
	}
}

func TestMonthlyChronologicalOrder(t *testing.T) {
	// A lexicographic sort would put April before January; the output must be
	// ordered by period start instead.
	periods := Monthly(2024, nil)

	for i := 1; i < len(periods); i++ {
		assert.True(t, periods[i].Start.After(periods[i-1].Start),
			"%s should come after %s", periods[i].Label, periods[i-1].Label)
	}
	assert.Equal(t, "April 2024", periods[3].Label)
}

func TestMonthlyGrouping(t *testing.T) {
	records := []Record{
		rec("10.00", time.Date(2024, time.March, 5, 12, 0, 0, 0, time.Local)),
		rec("2.50", time.Date(2024, time.March, 21, 9, 30, 0, 0, time.Local)),
		rec("7.00", time.Date(2024, time.November, 1, 0, 0, 0, 0, time.Local)),
		// Different year, must be ignored
		rec("99.00", time.Date(2023, time.March, 5, 12, 0, 0, 0, time.Local)),
	}

	periods := Monthly(2024, records)

	march := periods[2]
	assert.Equal(t, "March 2024", march.Label)
	assert.Equal(t, 2, march.Count)
	assert.True(t, march.Total.Equal(decimal.RequireFromString("12.50")))

	november := periods[10]
	assert.Equal(t, 1, november.Count)
	assert.True(t, november.Total.Equal(decimal.RequireFromString("7.00")))

	assert.Zero(t, periods[0].Count)
}

func TestDailySingleDay(t *testing.T) {
	day := time.Date(2024, time.March, 21, 0, 0, 0, 0, time.Local)
	records := []Record{
		rec("5.00", day.Add(10*time.Hour)),
		rec("1.25", day.Add(22*time.Hour)),
		rec("3.00", day.AddDate(0, 0, 1)), // next day, out of range
	}

	periods := Daily(day, day, records)

	require.Len(t, periods, 1)
	assert.Equal(t, "2024-03-21", periods[0].Label)
	assert.Equal(t, 2, periods[0].Count)
	assert.True(t, periods[0].Total.Equal(decimal.RequireFromString("6.25")))
}

func TestDailyRangeZeroFilled(t *testing.T) {
	from := time.Date(2024, time.February, 27, 15, 4, 5, 0, time.Local)
	to := time.Date(2024, time.March, 2, 1, 0, 0, 0, time.Local)

	periods := Daily(from, to, nil)

	// Leap year: 27, 28, 29 Feb, 1, 2 Mar
	require.Len(t, periods, 5)
	assert.Equal(t, "2024-02-27", periods[0].Label)
	assert.Equal(t, "2024-02-29", periods[2].Label)
	assert.Equal(t, "2024-03-02", periods[4].Label)
	for i := 1; i < len(periods); i++ {
		assert.True(t, periods[i].Start.After(periods[i-1].Start))
	}
}

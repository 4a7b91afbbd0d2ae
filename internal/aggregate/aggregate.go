// Package aggregate groups dated, amounted records into calendar-period totals.
package aggregate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Record is anything with an amount and a timestamp (a transfer or a tip).
type Record struct {
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Period is the total and count for one calendar unit (day or month).
// Start orders periods chronologically; a naive sort on Label would misorder
// month names.
type Period struct {
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
	Start time.Time       `json:"start"`
}

// Monthly groups records into exactly 12 month entries for the given year,
// zero-filled and chronologically ordered. Records outside the year are
// ignored. Grouping uses each record's own calendar date, not UTC-shifted.
func Monthly(year int, records []Record) []Period {
	periods := make([]Period, 12)
	for m := time.January; m <= time.December; m++ {
		start := time.Date(year, m, 1, 0, 0, 0, 0, time.Local)
		periods[m-1] = Period{
			Label: fmt.Sprintf("%s %d", m.String(), year),
			Total: decimal.Zero,
			Start: start,
		}
	}

	for _, rec := range records {
		if rec.Timestamp.Year() != year {
			continue
		}
		idx := int(rec.Timestamp.Month()) - 1
		periods[idx].Total = periods[idx].Total.Add(rec.Amount)
		periods[idx].Count++
	}

	return periods
}

// Daily groups records into one entry per calendar day in the inclusive
// [from, to] date range, zero-filled and chronologically ordered.
// The time-of-day of the bounds is ignored.
func Daily(from, to time.Time, records []Record) []Period {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.Local)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.Local)

	byDay := make(map[string]int)
	var periods []Period
	for day := fromDay; !day.After(toDay); day = day.AddDate(0, 0, 1) {
		label := day.Format("2006-01-02")
		byDay[label] = len(periods)
		periods = append(periods, Period{
			Label: label,
			Total: decimal.Zero,
			Start: day,
		})
	}

	for _, rec := range records {
		label := rec.Timestamp.Format("2006-01-02")
		idx, ok := byDay[label]
		if !ok {
			continue
		}
		periods[idx].Total = periods[idx].Total.Add(rec.Amount)
		periods[idx].Count++
	}

	return periods
}

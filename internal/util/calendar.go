package util

import (
	"time"

	"folio/internal/domain"
)

// daysPerYear is the mean Gregorian year length used to annualise returns.
const daysPerYear = 365.25

// PeriodFlagsBetween reports the calendar boundaries crossed between two
// consecutive trading days. A year change sets every flag. A month change
// sets MonthChanged, and QuarterChanged when the new month opens a quarter.
func PeriodFlagsBetween(prev, next time.Time) domain.PeriodFlags {
	var f domain.PeriodFlags
	if next.Year() != prev.Year() {
		f.MonthChanged = true
		f.QuarterChanged = true
		f.YearChanged = true
		return f
	}
	if next.Month() != prev.Month() {
		f.MonthChanged = true
		f.QuarterChanged = (int(next.Month())-1)%3 == 0
	}
	return f
}

// YearsBetween returns the span between two dates in years of 365.25 days.
func YearsBetween(from, to time.Time) float64 {
	days := domain.Day(to).Sub(domain.Day(from)).Hours() / 24
	return days / daysPerYear
}

// SubtractYears returns date moved back by the given number of years,
// months and days.
func SubtractYears(date time.Time, years, months, days int) time.Time {
	return date.AddDate(-years, -months, -days)
}

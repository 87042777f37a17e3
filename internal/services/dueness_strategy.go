// This file implements the Strategy Pattern for recurring transaction
// schedules. Each frequency has its own checker that decides whether a
// template fires on a given day and when it fires next.

package services

import (
	"fmt"

	"budget/internal/core"
)

// DuenessChecker is the strategy interface for one recurrence frequency.
type DuenessChecker interface {
	// IsDue reports whether today matches the frequency's day rule. It does
	// not look at the active window or the same-day watermark.
	IsDue(rt core.RecurringTransaction, today core.Date) bool
	// NextOccurrence projects the next date the template would fire after
	// today without changing it.
	NextOccurrence(rt core.RecurringTransaction, today core.Date) core.Date
	// OccurrencesPerMonth is the multiplier used by projections.
	OccurrencesPerMonth() int
}

// MonthlyChecker fires when the day of month equals day_of_period. Short
// months are not adjusted: day 31 never fires in a 30-day month.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(rt core.RecurringTransaction, today core.Date) bool {
	return today.Day() == rt.DayOfPeriod
}

// NextOccurrence falls back to the month's last day when day_of_period does
// not exist in that month.
func (MonthlyChecker) NextOccurrence(rt core.RecurringTransaction, today core.Date) core.Date {
	if today.Day() < rt.DayOfPeriod {
		return today.WithDayClamped(rt.DayOfPeriod)
	}
	return today.AddMonths(1).WithDayClamped(rt.DayOfPeriod)
}

func (MonthlyChecker) OccurrencesPerMonth() int { return 1 }

// BiweeklyChecker fires on day_of_period and fifteen days later.
type BiweeklyChecker struct{}

func (BiweeklyChecker) IsDue(rt core.RecurringTransaction, today core.Date) bool {
	return today.Day() == rt.DayOfPeriod || today.Day() == rt.DayOfPeriod+15
}

// NextOccurrence caps the second day at the 28th so it exists every month.
func (BiweeklyChecker) NextOccurrence(rt core.RecurringTransaction, today core.Date) core.Date {
	first := rt.DayOfPeriod
	second := min(rt.DayOfPeriod+15, 28)
	switch {
	case today.Day() < first:
		return today.WithDayClamped(first)
	case today.Day() < second:
		return today.WithDayClamped(second)
	default:
		return today.AddMonths(1).WithDayClamped(first)
	}
}

func (BiweeklyChecker) OccurrencesPerMonth() int { return 2 }

// WeeklyChecker fires every seventh day counted from start_date, and never
// within seven days of the last generation.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(rt core.RecurringTransaction, today core.Date) bool {
	if today.DaysSince(rt.StartDate)%7 != 0 {
		return false
	}
	if !rt.LastGeneratedDate.IsZero() {
		return today.DaysSince(rt.LastGeneratedDate) >= 7
	}
	return true
}

func (WeeklyChecker) NextOccurrence(rt core.RecurringTransaction, today core.Date) core.Date {
	if today.Before(rt.StartDate) {
		return rt.StartDate
	}
	if !rt.LastGeneratedDate.IsZero() {
		return rt.LastGeneratedDate.AddDays(7)
	}
	weeks := today.DaysSince(rt.StartDate) / 7
	return rt.StartDate.AddDays((weeks + 1) * 7)
}

func (WeeklyChecker) OccurrencesPerMonth() int { return 4 }

// duenessStrategies maps frequencies to their checkers.
var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Monthly:  MonthlyChecker{},
	core.Biweekly: BiweeklyChecker{},
	core.Weekly:   WeeklyChecker{},
}

// GetDuenessChecker returns the checker for a frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a checker for a new frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}

// ShouldGenerate is the full eligibility rule: the template is active, today
// lies in its window, nothing was generated today and the frequency's day
// rule matches.
func ShouldGenerate(rt core.RecurringTransaction, today core.Date) bool {
	if !rt.IsActive || today.Before(rt.StartDate) {
		return false
	}
	if !rt.EndDate.IsZero() && today.After(rt.EndDate) {
		return false
	}
	if rt.LastGeneratedDate.Equal(today) {
		return false
	}
	checker, err := GetDuenessChecker(rt.Frequency)
	if err != nil {
		return false
	}
	return checker.IsDue(rt, today)
}

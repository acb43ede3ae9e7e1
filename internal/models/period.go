package models

import (
	"fmt"
	"time"
)

// BillingPeriod is a calendar-month window. Fee matching, the
// period-already-paid check and invoice line descriptions all operate on
// calendar months.
type BillingPeriod struct {
	Start time.Time // first day of month, 00:00:00
	End   time.Time // last day of month, 23:59:59
}

// PeriodOf returns the billing period containing t
func PeriodOf(t time.Time) BillingPeriod {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return BillingPeriod{Start: start, End: end}
}

// Contains reports whether t falls inside the period
func (p BillingPeriod) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start) && !t.After(p.End)
}

// Label renders the period as "June 2025"
func (p BillingPeriod) Label() string {
	return fmt.Sprintf("%s %d", p.Start.Month().String(), p.Start.Year())
}

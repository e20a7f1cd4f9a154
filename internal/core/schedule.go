package core

import "time"

// NextPaymentDate returns the next date on or after now when a charge on the
// given day of month falls due. Days past the end of a short month are clamped
// to that month's last day. Absent or non-positive days have no schedule.
func NextPaymentDate(day Whole, now time.Time) (time.Time, bool) {
	if !day.Valid || day.Value < 1 {
		return time.Time{}, false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	due := clampedDay(y, m, day.Value, now.Location())
	if due.Before(today) {
		due = clampedDay(y, m+1, day.Value, now.Location())
	}
	return due, true
}

// DaysUntil returns the whole number of calendar days from now until the next
// payment, or -1 when the expense has no schedule.
func DaysUntil(day Whole, now time.Time) int {
	due, ok := NextPaymentDate(day, now)
	if !ok {
		return -1
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return int(due.Sub(today).Hours()+12) / 24
}

func clampedDay(year int, month time.Month, day int64, loc *time.Location) time.Time {
	// time.Date normalizes month overflow, so month+1 in December is January.
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, loc).Day()
	target := int(day)
	if day > int64(lastDay) {
		target = lastDay
	}
	return time.Date(first.Year(), first.Month(), target, 0, 0, 0, 0, loc)
}

package domain

import "time"

// AddMonths adds n calendar months to t. When the target month is shorter than
// t's day of month the result is clamped to the last day of that month, so
// Jan 31 + 1 month is Feb 28 (or 29).
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(n), 1, hour, min, sec, t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month(), t.Location())
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// InterestStartDate returns the date interest starts accruing for an account
// whose first deposit lands on firstDeposit.
func InterestStartDate(accountType AccountType, firstDeposit time.Time) (time.Time, error) {
	months, err := accountType.MonthsBetweenInterestCalculations()
	if err != nil {
		return time.Time{}, err
	}
	return AddMonths(firstDeposit, months), nil
}

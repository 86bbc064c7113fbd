package feeplan

import (
	"errors"
	"time"
)

var ErrInvalidInterval = errors.New("invalid interval or missing interval count")

// Months returns the number of calendar months the interval spans.
func (i Interval) Months(intervalCount *int) (int, error) {
	switch i {
	case IntervalMonthly:
		return 1, nil
	case IntervalQuarterly:
		return 3, nil
	case IntervalSemester:
		return 6, nil
	case IntervalYearly:
		return 12, nil
	case IntervalCustom:
		if intervalCount == nil || *intervalCount < 1 {
			return 0, ErrInvalidInterval
		}
		return *intervalCount, nil
	default:
		return 0, ErrInvalidInterval
	}
}

// Advance computes the next period start and due date from an anchor date.
// The due date equals the period start. Day-of-month overflow clamps to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29); the day is
// otherwise preserved, so Feb 28 + 1 month = Mar 28, not end of month.
func Advance(anchor time.Time, interval Interval, intervalCount *int) (time.Time, time.Time, error) {
	months, err := interval.Months(intervalCount)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start := addMonthsClamped(anchor, months)
	return start, start, nil
}

// addMonthsClamped adds calendar months, clamping the day to the target
// month's length instead of letting it normalize into the following month
// the way time.AddDate does.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	h, min, s := t.Clock()

	firstOfTarget := time.Date(y, m+time.Month(months), 1, h, min, s, t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, h, min, s, t.Nanosecond(), t.Location())
}

package quota

import (
	"fmt"
	"time"
)

// PeriodBounds returns the [start, end) boundaries of the accounting
// period containing t. Boundaries are computed in UTC regardless of
// t's location, so every caller within the same UTC day or month lands
// on identical bounds.
func PeriodBounds(periodType string, t time.Time) (start, end time.Time, err error) {
	u := t.UTC()
	switch periodType {
	case PeriodDaily:
		start = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1)
	case PeriodMonthly:
		start = time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period type %q", periodType)
	}
	return start, end, nil
}

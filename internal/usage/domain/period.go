package domain

import (
	"time"

	"github.com/smallbiznis/entitlements/internal/catalog"
)

// NeverResetStart anchors the single open-ended window of limits that never
// reset.
var NeverResetStart = time.Unix(0, 0).UTC()

// PeriodFor returns the UTC window containing now. Monthly and yearly windows
// follow calendar boundaries; end is nil for ResetNever.
func PeriodFor(reset catalog.ResetPeriod, now time.Time) (time.Time, *time.Time) {
	now = now.UTC()
	switch reset {
	case catalog.ResetMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		return start, &end
	case catalog.ResetYearly:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(1, 0, 0)
		return start, &end
	default:
		return NeverResetStart, nil
	}
}

package budgetservice

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/starford/finplan/internal/models"
)

// Window returns the inclusive [from, to] period of a budget that contains
// today. Before the start date the first period is returned. Monthly and
// yearly periods anchored on a day missing from a shorter month start on
// that month's last day.
func Window(start civil.Date, period models.Period, today civil.Date) (from, to civil.Date) {
	if today.Before(start) {
		today = start
	}
	switch period {
	case models.PeriodWeekly:
		k := today.DaysSince(start) / 7
		from = start.AddDays(7 * k)
		return from, from.AddDays(6)
	case models.PeriodYearly:
		k := today.Year - start.Year
		if addMonths(start, 12*k).After(today) {
			k--
		}
		return addMonths(start, 12*k), addMonths(start, 12*(k+1)).AddDays(-1)
	default:
		k := (today.Year-start.Year)*12 + int(today.Month-start.Month)
		if addMonths(start, k).After(today) {
			k--
		}
		return addMonths(start, k), addMonths(start, k+1).AddDays(-1)
	}
}

// addMonths moves d by n months, clamping the day to the target month's length.
func addMonths(d civil.Date, n int) civil.Date {
	first := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	return civil.Date{Year: first.Year(), Month: first.Month(), Day: min(d.Day, last)}
}

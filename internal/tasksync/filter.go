package tasksync

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"taskboard/internal/service"
)

// Period selects which due dates appear in the view.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts today, week, month or all. The empty string means all.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PeriodAll:
		return PeriodAll, nil
	case PeriodToday, PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q (want today, week, month or all)", s)
	}
}

// Title returns the heading shown above the view.
func (p Period) Title() string {
	switch p {
	case PeriodToday:
		return "Today's Tasks"
	case PeriodWeek:
		return "This Week's Tasks"
	case PeriodMonth:
		return "This Month's Tasks"
	default:
		return "All Tasks"
	}
}

// WeekRange returns the inclusive first and last day of the week containing today.
func WeekRange(today civil.Date, weekStart time.Weekday) (civil.Date, civil.Date) {
	wd := today.In(time.UTC).Weekday()
	back := (int(wd) - int(weekStart) + 7) % 7
	first := today.AddDays(-back)
	return first, first.AddDays(6)
}

// Filter returns the tasks of all whose due date falls in period relative to today.
// The order of all is kept. The result never aliases all.
func Filter(all []service.Task, period Period, today civil.Date, weekStart time.Weekday) []service.Task {
	match := matcher(period, today, weekStart)
	out := make([]service.Task, 0, len(all))
	for _, t := range all {
		if match(t.DueDate) {
			out = append(out, t)
		}
	}
	return out
}

func matcher(period Period, today civil.Date, weekStart time.Weekday) func(civil.Date) bool {
	switch period {
	case PeriodToday:
		return func(d civil.Date) bool { return d == today }
	case PeriodWeek:
		first, last := WeekRange(today, weekStart)
		return func(d civil.Date) bool { return !d.Before(first) && !d.After(last) }
	case PeriodMonth:
		return func(d civil.Date) bool { return d.Year == today.Year && d.Month == today.Month }
	default:
		return func(civil.Date) bool { return true }
	}
}

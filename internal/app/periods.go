package app

import (
	"time"

	"trivia-bot/internal/domain"
)

// DayStart truncates t to local midnight in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// WeekStart returns Monday 00:00 of the week containing t.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	day := DayStart(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// MonthStart returns the 1st of the month containing t at 00:00.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// PeriodStart returns the start of the period containing t; zero for all-time.
func PeriodStart(period domain.Period, t time.Time, loc *time.Location) time.Time {
	switch period {
	case domain.PeriodWeekly:
		return WeekStart(t, loc)
	case domain.PeriodMonthly:
		return MonthStart(t, loc)
	}
	return time.Time{}
}

// NextPeriodStart returns the boundary following the period containing t.
func NextPeriodStart(period domain.Period, t time.Time, loc *time.Location) time.Time {
	switch period {
	case domain.PeriodWeekly:
		return WeekStart(t, loc).AddDate(0, 0, 7)
	case domain.PeriodMonthly:
		return MonthStart(t, loc).AddDate(0, 1, 0)
	}
	return time.Time{}
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	return DayStart(a, loc).Equal(DayStart(b, loc))
}

package streak

import (
	"time"

	"github.com/stridefit/stride/internal/domain"
)

// MaxCalendarDays bounds a single calendar request.
const MaxCalendarDays = 371

// Calendar returns one cell per day in [from, to] (calendar days in the
// state's zone). Recorded days keep their status; past unrecorded days after
// the first recorded day are missed, except weekend days of the still-open gap
// when weekend skip is on. Everything else is unlogged.
func (e *Engine) Calendar(s domain.StreakState, from, to, now time.Time) []domain.CalendarDay {
	loc := e.Location(s)
	start := startOfDay(from, loc)
	n := compareDays(from, to, loc) + 1
	if n <= 0 {
		return nil
	}
	if n > MaxCalendarDays {
		n = MaxCalendarDays
	}

	today := dayKey(now, loc)
	first := firstRecordedDay(s)
	last := ""
	if !s.IsNew() {
		last = dayKey(s.LastQualifyingAt, loc)
	}

	days := make([]domain.CalendarDay, 0, n)
	d := start
	for i := 0; i < n; i++ {
		key := d.Format(domain.DateLayout)
		days = append(days, domain.CalendarDay{Date: key, Status: dayStatus(s, key, d, first, last, today)})
		d = d.AddDate(0, 0, 1)
	}
	return days
}

func dayStatus(s domain.StreakState, key string, d time.Time, first, last, today string) domain.DayStatus {
	if st, ok := s.Days[key]; ok {
		return st
	}
	if first == "" || key <= first || key >= today {
		return domain.DayUnlogged
	}
	if s.WeekendSkipEnabled && key > last && isWeekend(d) {
		return domain.DaySkipped
	}
	return domain.DayMissed
}

// firstRecordedDay returns the smallest day key; keys sort lexically by date.
func firstRecordedDay(s domain.StreakState) string {
	first := ""
	for k := range s.Days {
		if first == "" || k < first {
			first = k
		}
	}
	return first
}

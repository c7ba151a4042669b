// Package schedule builds the bookable window of a gym: which calendar days are open,
// which hours run on each day, and the sessions offered in each hour.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"gymbody/internal/models"
)

const DateLayout = "2006-01-02"

// Options are the business rules that shape a window.
type Options struct {
	Location      *time.Location
	WindowDays    int
	ClosedDay     time.Weekday
	HasClosedDay  bool
	ShortDay      time.Weekday
	HasShortDay   bool
	WeekdayHours  []int
	ShortDayHours []int
	// SafetyLimit bounds the number of calendar days scanned.
	SafetyLimit int
}

// OptionsFor derives window options from a tenant. Unknown weekday names disable the
// corresponding rule and an unknown timezone falls back to UTC.
func OptionsFor(g models.GymConfig, safetyLimit int) Options {
	opts := Options{
		Location:      LoadLocation(g.Timezone),
		WindowDays:    g.WindowDays,
		WeekdayHours:  g.WeekdayHours,
		ShortDayHours: g.ShortDayHours,
		SafetyLimit:   safetyLimit,
	}
	opts.ClosedDay, opts.HasClosedDay = models.ParseWeekday(g.ClosedDay)
	opts.ShortDay, opts.HasShortDay = models.ParseWeekday(g.ShortDay)
	if opts.WindowDays <= 0 {
		opts.WindowDays = models.DefaultWindowDays
	}
	if opts.SafetyLimit <= 0 {
		opts.SafetyLimit = models.DefaultWindowSafetyLimit
	}
	return opts
}

// LoadLocation resolves a timezone name, returning UTC when it cannot.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Day is one open calendar day of the window.
type Day struct {
	Date    string       `json:"date"`
	Weekday time.Weekday `json:"weekday"`
	Hours   []int        `json:"hours"`
}

// Window lists up to opts.WindowDays open days starting with today in the gym's
// timezone. Closed days are skipped; at most opts.SafetyLimit days are scanned.
func Window(now time.Time, opts Options) []Day {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	days := make([]Day, 0, opts.WindowDays)
	for scanned := 0; len(days) < opts.WindowDays && scanned < opts.SafetyLimit; scanned++ {
		wd := d.Weekday()
		if !opts.HasClosedDay || wd != opts.ClosedDay {
			days = append(days, Day{
				Date:    d.Format(DateLayout),
				Weekday: wd,
				Hours:   opts.hoursFor(wd),
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	return days
}

func (o Options) hoursFor(wd time.Weekday) []int {
	src := o.WeekdayHours
	if o.HasShortDay && wd == o.ShortDay {
		src = o.ShortDayHours
	}
	return append([]int(nil), src...)
}

// FormatHour renders an hour of day as "6:00 AM" / "3:00 PM".
func FormatHour(hour int) string {
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return strconv.Itoa(display) + ":00 " + period
}

// ParseStart combines a YYYY-MM-DD date and an "h:mm AM|PM" time in loc.
// ok is false for malformed or out-of-range input.
func ParseStart(date, clock string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, false
	}

	fields := strings.Fields(strings.ToUpper(clock))
	if len(fields) != 2 || (fields[1] != "AM" && fields[1] != "PM") {
		return time.Time{}, false
	}
	hm := strings.SplitN(fields[0], ":", 2)
	if len(hm) != 2 || len(hm[1]) != 2 {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 1 || hour > 12 {
		return time.Time{}, false
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, false
	}

	switch {
	case fields[1] == "PM" && hour != 12:
		hour += 12
	case fields[1] == "AM" && hour == 12:
		hour = 0
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), true
}

// StartOf returns the session start, or now when the session's date or time cannot
// be parsed.
func StartOf(s *models.ClassSession, loc *time.Location, now time.Time) time.Time {
	if start, ok := ParseStart(s.Date, s.Time, loc); ok {
		return start
	}
	return now
}

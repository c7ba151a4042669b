package models

import (
	"strings"
	"time"
)

// GymConfig describes one tenant: branding and business rules.
type GymConfig struct {
	ID                         string          `yaml:"id" json:"id"`
	Name                       string          `yaml:"name" json:"name"`
	PrimaryColor               string          `yaml:"primary_color" json:"primary_color"`
	AccentColor                string          `yaml:"accent_color" json:"accent_color"`
	Timezone                   string          `yaml:"timezone" json:"timezone"`
	CancellationWindowHours    int             `yaml:"cancellation_window_hours" json:"cancellation_window_hours"`
	VisibilityThresholdMinutes int             `yaml:"visibility_threshold_minutes" json:"visibility_threshold_minutes"`
	WindowDays                 int             `yaml:"window_days" json:"window_days"`
	ClosedDay                  string          `yaml:"closed_day" json:"closed_day"`
	ShortDay                   string          `yaml:"short_day" json:"short_day"`
	WeekdayHours               []int           `yaml:"weekday_hours" json:"weekday_hours"`
	ShortDayHours              []int           `yaml:"short_day_hours" json:"short_day_hours"`
	SemiPersonalCapacity       int             `yaml:"semi_personal_capacity" json:"semi_personal_capacity"`
	OpenGymCapacity            int             `yaml:"open_gym_capacity" json:"open_gym_capacity"`
	Features                   map[string]bool `yaml:"features" json:"features"`
}

// Feature reports whether a feature flag is switched on.
func (g GymConfig) Feature(name string) bool {
	if g.Features == nil {
		return false
	}
	return g.Features[name]
}

// ParseWeekday maps an English weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, true
		}
	}
	return 0, false
}

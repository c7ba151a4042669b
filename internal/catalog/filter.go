// Package catalog decides which sessions a viewer sees and keeps the stored window
// in step with the calendar.
package catalog

import (
	"sort"
	"time"

	"gymbody/internal/access"
	"gymbody/internal/models"
	"gymbody/internal/schedule"
)

// Query is one viewer's request against the catalog. Empty facets match everything.
type Query struct {
	Caps      access.Capabilities
	Now       time.Time
	Location  *time.Location
	Threshold time.Duration

	Date     string
	Trainer  string
	Category models.Category

	// HidePast drops already started sessions for staff. Clients never see them.
	HidePast bool
}

// Visible applies role, facet and lead-time rules to one session.
func Visible(s *models.ClassSession, q Query) bool {
	if !q.Caps.CanBookCategory(s.Category) {
		return false
	}
	if q.Date != "" && s.Date != q.Date {
		return false
	}
	if q.Trainer != "" && s.Instructor != q.Trainer {
		return false
	}
	if q.Category != "" && s.Category != q.Category {
		return false
	}

	start := schedule.StartOf(s, q.Location, q.Now)
	if q.Caps.Staff {
		return !q.HidePast || start.After(q.Now)
	}
	return start.After(q.Now.Add(q.Threshold))
}

// Filter returns the visible sessions ordered by date then start time.
func Filter(sessions []*models.ClassSession, q Query) []*models.ClassSession {
	out := make([]*models.ClassSession, 0, len(sessions))
	for _, s := range sessions {
		if Visible(s, q) {
			out = append(out, s)
		}
	}
	Sort(out, q.Location)
	return out
}

// Sort orders sessions by date, start time, then id. Sessions with an unreadable time
// sort first within their date.
func Sort(sessions []*models.ClassSession, loc *time.Location) {
	starts := make(map[*models.ClassSession]time.Time, len(sessions))
	for _, s := range sessions {
		start, _ := schedule.ParseStart(s.Date, s.Time, loc)
		starts[s] = start
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if !starts[a].Equal(starts[b]) {
			return starts[a].Before(starts[b])
		}
		return a.ID < b.ID
	})
}

type DateGroup struct {
	Date     string                 `json:"date"`
	Sessions []*models.ClassSession `json:"sessions"`
}

// GroupByDate groups already ordered sessions by calendar date.
func GroupByDate(sessions []*models.ClassSession) []DateGroup {
	var groups []DateGroup
	for _, s := range sessions {
		if n := len(groups); n > 0 && groups[n-1].Date == s.Date {
			groups[n-1].Sessions = append(groups[n-1].Sessions, s)
			continue
		}
		groups = append(groups, DateGroup{Date: s.Date, Sessions: []*models.ClassSession{s}})
	}
	return groups
}

// Trainers lists the distinct instructors, sorted.
func Trainers(sessions []*models.ClassSession) []string {
	return distinct(sessions, func(s *models.ClassSession) string { return s.Instructor })
}

// Dates lists the distinct dates, sorted.
func Dates(sessions []*models.ClassSession) []string {
	return distinct(sessions, func(s *models.ClassSession) string { return s.Date })
}

func distinct(sessions []*models.ClassSession, key func(*models.ClassSession) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sessions {
		k := key(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

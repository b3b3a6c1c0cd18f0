// Package catalog filters, sorts and pages event listings.
package catalog

import (
	"sort"
	"strings"

	"eventhub/internal/model"
)

const (
	All = "All"

	SortPopular  = "popular"
	SortNewest   = "newest"
	SortDistance = "distance"

	DefaultLimit = 50
	MaxLimit     = 200
)

type Filter struct {
	Query       string
	Category    string
	Type        string
	Date        string
	MaxDistance float64
	Sort        string
}

func matchesQuery(e *model.Event, q string) bool {
	if q == "" {
		return true
	}
	for _, field := range []string{e.Title, e.Description, e.Location, e.Category} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (f Filter) matches(e *model.Event) bool {
	if !matchesQuery(e, strings.ToLower(strings.TrimSpace(f.Query))) {
		return false
	}
	if f.Category != "" && f.Category != All && e.Category != f.Category {
		return false
	}
	if f.Type != "" && !strings.EqualFold(f.Type, All) && !strings.EqualFold(string(e.Type), f.Type) {
		return false
	}
	if f.Date != "" && e.Date != f.Date {
		return false
	}
	if f.MaxDistance > 0 && (e.Distance == nil || *e.Distance > f.MaxDistance) {
		return false
	}
	return true
}

// Apply returns the events matching f, ordered by f.Sort. Input order is kept
// when no sort is requested or when sort keys tie.
func Apply(events []model.Event, f Filter) []model.Event {
	out := make([]model.Event, 0, len(events))
	for i := range events {
		if f.matches(&events[i]) {
			out = append(out, events[i])
		}
	}

	switch f.Sort {
	case SortPopular:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CurrentAttendees > out[j].CurrentAttendees
		})
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Date > out[j].Date
		})
	case SortDistance:
		sort.SliceStable(out, func(i, j int) bool {
			return distance(&out[i]) < distance(&out[j])
		})
	}
	return out
}

func distance(e *model.Event) float64 {
	if e.Distance == nil {
		return 0
	}
	return *e.Distance
}

// Page slices events by limit and offset. A non-positive limit means DefaultLimit.
func Page(events []model.Event, limit, offset int) []model.Event {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(events) {
		return []model.Event{}
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}
	return events[offset:end]
}

// Categories lists All followed by the distinct categories in use.
func Categories(events []model.Event) []string {
	seen := map[string]struct{}{}
	for _, e := range events {
		if e.Category != "" {
			seen[e.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return append([]string{All}, out...)
}

// Hosting returns the events organized by userID.
func Hosting(events []model.Event, userID string) []model.Event {
	out := []model.Event{}
	for _, e := range events {
		if e.OrganizerID == userID {
			out = append(out, e)
		}
	}
	return out
}

// Attending returns the events where userID's request was accepted.
func Attending(events []model.Event, userID string) []model.Event {
	out := []model.Event{}
	for i := range events {
		if events[i].StatusFor(userID) == model.StatusAccepted {
			out = append(out, events[i])
		}
	}
	return out
}

func IDs(events []model.Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

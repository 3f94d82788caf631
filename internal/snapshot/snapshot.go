// Package snapshot normalizes raw scraped listings into comparable
// title and date sets.
package snapshot

import (
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Listing is the raw output of one scraped show: the title text as it
// appears on the site, the date strings found on its page, and the URL
// of its offering page when known.
type Listing struct {
	Title string
	URL   string
	Dates []string
}

// DateSet is a set of canonical dates (UTC midnight).
type DateSet map[time.Time]struct{}

// Add inserts a date into the set.
func (s DateSet) Add(d time.Time) {
	s[d] = struct{}{}
}

// Contains reports whether the set holds d.
func (s DateSet) Contains(d time.Time) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the dates in chronological order.
func (s DateSet) Sorted() []time.Time {
	out := make([]time.Time, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Clone returns an independent copy of the set.
func (s DateSet) Clone() DateSet {
	out := make(DateSet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	return out
}

// Snapshot holds everything observed in one run, keyed by normalized title.
type Snapshot struct {
	Shows   map[string]DateSet
	Display map[string]string // normalized key -> original (trimmed) casing
	URLs    map[string]string // normalized key -> offering URL
}

// NormalizeTitle produces the case-insensitive comparison key for a raw title.
func NormalizeTitle(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseDate parses a single date string under the given layout into its
// canonical form: midnight UTC of the calendar day.
func ParseDate(layout, raw string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Normalize converts raw listings into a Snapshot. Duplicate titles (after
// normalization) union their date sets. Date strings that do not parse under
// layout are dropped with a warning; a bad entry never aborts the run.
func Normalize(listings []Listing, layout string, logger *slog.Logger) Snapshot {
	snap := Snapshot{
		Shows:   make(map[string]DateSet),
		Display: make(map[string]string),
		URLs:    make(map[string]string),
	}

	for _, l := range listings {
		key := NormalizeTitle(l.Title)
		if key == "" {
			logger.Warn("Dropping listing with empty title", "url", l.URL)
			continue
		}

		dates, ok := snap.Shows[key]
		if !ok {
			dates = make(DateSet)
			snap.Shows[key] = dates
			snap.Display[key] = strings.TrimSpace(l.Title)
		}
		if l.URL != "" && snap.URLs[key] == "" {
			snap.URLs[key] = l.URL
		}

		for _, raw := range l.Dates {
			d, err := ParseDate(layout, raw)
			if err != nil {
				logger.Warn("Dropping unparsable date", "title", key, "date", raw, "layout", layout)
				continue
			}
			dates.Add(d)
		}
	}

	return snap
}

// Restrict returns a snapshot containing only the titles whose normalized
// keys appear in desired. An empty desired list means no restriction.
func (s Snapshot) Restrict(desired []string) Snapshot {
	if len(desired) == 0 {
		return s
	}

	keep := make(map[string]struct{}, len(desired))
	for _, t := range desired {
		keep[NormalizeTitle(t)] = struct{}{}
	}

	out := Snapshot{
		Shows:   make(map[string]DateSet),
		Display: make(map[string]string),
		URLs:    make(map[string]string),
	}
	for key, dates := range s.Shows {
		if _, ok := keep[key]; !ok {
			continue
		}
		out.Shows[key] = dates
		out.Display[key] = s.Display[key]
		out.URLs[key] = s.URLs[key]
	}
	return out
}

// Titles returns the normalized title keys in lexicographic order.
func (s Snapshot) Titles() []string {
	out := make([]string, 0, len(s.Shows))
	for key := range s.Shows {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

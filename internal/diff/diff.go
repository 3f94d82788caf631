// Package diff classifies a normalized availability snapshot against
// previously recorded state and merges accepted results back in. All
// functions are pure: they never touch files, the network, or a clock.
package diff

import (
	"sort"
	"time"

	"github.com/Mantene/tdf-alerts/internal/snapshot"
)

// Result is the classification of one run's snapshot. A title appears in
// exactly one of the three buckets. New carries the full (filtered) date
// set of a never-seen title; Updated carries only the dates not seen
// before for a known title.
type Result struct {
	New       map[string]snapshot.DateSet
	Updated   map[string]snapshot.DateSet
	Unchanged []string
}

// Empty reports whether there is nothing to alert on.
func (r Result) Empty() bool {
	return len(r.New) == 0 && len(r.Updated) == 0
}

// Titles returns the union of New and Updated keys in lexicographic order.
func (r Result) Titles() []string {
	out := make([]string, 0, len(r.New)+len(r.Updated))
	for title := range r.New {
		out = append(out, title)
	}
	for title := range r.Updated {
		out = append(out, title)
	}
	sort.Strings(out)
	return out
}

// Dates returns the alertable dates for a title, whichever bucket it is in.
func (r Result) Dates(title string) snapshot.DateSet {
	if d, ok := r.New[title]; ok {
		return d
	}
	return r.Updated[title]
}

// Compute diffs the current snapshot against previous state. When filter is
// non-nil every title's date set is first restricted to the filter date;
// titles left with no dates are excluded from the result entirely. Titles
// present in previous but absent from current are not reported: removals
// are silent, and a title whose only changes are removals is unchanged.
func Compute(previous map[string]snapshot.DateSet, current snapshot.Snapshot, filter *time.Time) Result {
	res := Result{
		New:     make(map[string]snapshot.DateSet),
		Updated: make(map[string]snapshot.DateSet),
	}

	for _, title := range current.Titles() {
		dates := current.Shows[title]
		if filter != nil {
			if !dates.Contains(*filter) {
				continue
			}
			only := make(snapshot.DateSet)
			only.Add(*filter)
			dates = only
		}
		if len(dates) == 0 {
			continue
		}

		known, seen := previous[title]
		if !seen {
			res.New[title] = dates.Clone()
			continue
		}

		fresh := make(snapshot.DateSet)
		for d := range dates {
			if !known.Contains(d) {
				fresh.Add(d)
			}
		}
		if len(fresh) > 0 {
			res.Updated[title] = fresh
		} else {
			res.Unchanged = append(res.Unchanged, title)
		}
	}

	sort.Strings(res.Unchanged)
	return res
}

// Commit merges a result's new facts into previous state and returns the
// merged state; previous is not modified. Every title in New and Updated
// gets the union of its prior and newly observed dates. Unchanged titles
// and titles absent from the current snapshot are carried over untouched,
// unless prune is set, in which case titles no longer present in current
// are dropped.
func Commit(previous map[string]snapshot.DateSet, res Result, current snapshot.Snapshot, prune bool) map[string]snapshot.DateSet {
	merged := make(map[string]snapshot.DateSet, len(previous)+len(res.New))
	for title, dates := range previous {
		if prune {
			if _, ok := current.Shows[title]; !ok {
				continue
			}
		}
		merged[title] = dates.Clone()
	}

	for title, dates := range res.New {
		set, ok := merged[title]
		if !ok {
			set = make(snapshot.DateSet, len(dates))
			merged[title] = set
		}
		for d := range dates {
			set.Add(d)
		}
	}
	for title, dates := range res.Updated {
		set, ok := merged[title]
		if !ok {
			set = make(snapshot.DateSet, len(dates))
			merged[title] = set
		}
		for d := range dates {
			set.Add(d)
		}
	}

	return merged
}

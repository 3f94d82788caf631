package state

import (
	"log/slog"

	"github.com/Mantene/tdf-alerts/internal/snapshot"
)

// Document is the durable record of everything previously alerted:
// normalized title -> sorted canonical date strings. This is the exact
// shape serialized to JSON.
type Document map[string][]string

// DateSets parses a document into comparable date sets. Entries that do
// not parse under layout are dropped with a warning rather than failing
// the run; at worst a dropped entry is re-alerted.
func (d Document) DateSets(layout string, logger *slog.Logger) map[string]snapshot.DateSet {
	out := make(map[string]snapshot.DateSet, len(d))
	for title, raw := range d {
		set := make(snapshot.DateSet, len(raw))
		for _, s := range raw {
			t, err := snapshot.ParseDate(layout, s)
			if err != nil {
				logger.Warn("Dropping unparsable state entry", "title", title, "date", s)
				continue
			}
			set.Add(t)
		}
		out[title] = set
	}
	return out
}

// FromDateSets renders date sets back into document form with each
// title's dates in chronological order, so serialized state is stable.
func FromDateSets(m map[string]snapshot.DateSet, layout string) Document {
	doc := make(Document, len(m))
	for title, set := range m {
		dates := make([]string, 0, len(set))
		for _, t := range set.Sorted() {
			dates = append(dates, t.Format(layout))
		}
		doc[title] = dates
	}
	return doc
}

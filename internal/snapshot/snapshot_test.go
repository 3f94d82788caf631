package snapshot

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const layout = "01/02/2006"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(layout, s)
	require.NoError(t, err)
	return d
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Hamilton", "hamilton"},
		{"  Hamilton  ", "hamilton"},
		{"HAMILTON", "hamilton"},
		{"\tThe Lion King\n", "the lion king"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTitle(tt.raw))
	}
}

func TestNormalizeMergesDuplicateTitles(t *testing.T) {
	listings := []Listing{
		{Title: "Hamilton", Dates: []string{"12/25/2025"}},
		{Title: " HAMILTON ", Dates: []string{"01/01/2026", "12/25/2025"}},
	}

	snap := Normalize(listings, layout, discard())

	require.Len(t, snap.Shows, 1)
	dates := snap.Shows["hamilton"]
	require.Len(t, dates, 2)
	assert.True(t, dates.Contains(day(t, "12/25/2025")))
	assert.True(t, dates.Contains(day(t, "01/01/2026")))
	assert.Equal(t, "Hamilton", snap.Display["hamilton"])
}

func TestNormalizeDropsUnparsableDates(t *testing.T) {
	listings := []Listing{
		{Title: "Wicked", Dates: []string{"not a date", "03/14/2026", "2026-03-15"}},
	}

	snap := Normalize(listings, layout, discard())

	dates := snap.Shows["wicked"]
	require.Len(t, dates, 1)
	assert.True(t, dates.Contains(day(t, "03/14/2026")))
}

func TestNormalizeKeepsFirstURL(t *testing.T) {
	listings := []Listing{
		{Title: "Wicked", URL: "https://example.org/wicked", Dates: []string{"03/14/2026"}},
		{Title: "wicked", URL: "https://example.org/other", Dates: nil},
	}

	snap := Normalize(listings, layout, discard())
	assert.Equal(t, "https://example.org/wicked", snap.URLs["wicked"])
}

func TestNormalizeEmptyInput(t *testing.T) {
	snap := Normalize(nil, layout, discard())
	assert.Empty(t, snap.Shows)
}

func TestNormalizeEmptyTitleDropped(t *testing.T) {
	snap := Normalize([]Listing{{Title: "   ", Dates: []string{"12/25/2025"}}}, layout, discard())
	assert.Empty(t, snap.Shows)
}

func TestRestrict(t *testing.T) {
	listings := []Listing{
		{Title: "Hamilton", Dates: []string{"12/25/2025"}},
		{Title: "Wicked", Dates: []string{"03/14/2026"}},
	}
	snap := Normalize(listings, layout, discard())

	got := snap.Restrict([]string{" HAMILTON "})
	require.Len(t, got.Shows, 1)
	assert.Contains(t, got.Shows, "hamilton")

	// No restriction when the desired list is empty.
	assert.Len(t, snap.Restrict(nil).Shows, 2)
}

func TestDateSetSorted(t *testing.T) {
	s := make(DateSet)
	s.Add(day(t, "01/01/2026"))
	s.Add(day(t, "12/25/2025"))
	s.Add(day(t, "06/30/2026"))

	got := s.Sorted()
	require.Len(t, got, 3)
	assert.Equal(t, day(t, "12/25/2025"), got[0])
	assert.Equal(t, day(t, "01/01/2026"), got[1])
	assert.Equal(t, day(t, "06/30/2026"), got[2])
}

func TestTitlesSorted(t *testing.T) {
	snap := Normalize([]Listing{
		{Title: "Wicked"},
		{Title: "Hamilton"},
		{Title: "Six"},
	}, layout, discard())

	assert.Equal(t, []string{"hamilton", "six", "wicked"}, snap.Titles())
}

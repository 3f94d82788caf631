package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mantene/tdf-alerts/internal/notify"
	"github.com/Mantene/tdf-alerts/internal/snapshot"
	"github.com/Mantene/tdf-alerts/internal/state"
)

const layout = "01/02/2006"

type fakeSource struct {
	listings []snapshot.Listing
	err      error
}

func (f *fakeSource) FetchAvailability(context.Context) ([]snapshot.Listing, error) {
	return f.listings, f.err
}

type fakeStore struct {
	doc        state.Document
	saved      *state.Document
	acquireErr error
	saveErr    error
	released   bool
}

func (f *fakeStore) Acquire(context.Context) (func(), error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	return func() { f.released = true }, nil
}

func (f *fakeStore) Load(context.Context) (state.Document, error) {
	if f.doc == nil {
		return state.Document{}, nil
	}
	return f.doc, nil
}

func (f *fakeStore) Save(_ context.Context, doc state.Document) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = &doc
	return nil
}

type fakeNotifier struct {
	payloads []notify.Payload
	err      error
}

func (*fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Dispatch(_ context.Context, p notify.Payload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func newRunner(source *fakeSource, store *fakeStore, notifier *fakeNotifier, opts Options) *Runner {
	if opts.DateLayout == "" {
		opts.DateLayout = layout
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(source, store, notifier, opts, logger)
	r.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRunNewTitleNotifiesAndCommits(t *testing.T) {
	source := &fakeSource{listings: []snapshot.Listing{
		{Title: "Hamilton", Dates: []string{"12/25/2025"}},
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	err := newRunner(source, store, notifier, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, notifier.payloads, 1)
	assert.Equal(t, "Hamilton", notifier.payloads[0].Shows[0].Title)

	require.NotNil(t, store.saved)
	assert.Equal(t, state.Document{"hamilton": {"12/25/2025"}}, *store.saved)
	assert.True(t, store.released)
}

func TestRunNothingNewSkipsNotifyAndSave(t *testing.T) {
	source := &fakeSource{listings: []snapshot.Listing{
		{Title: "Hamilton", Dates: []string{"12/25/2025"}},
	}}
	store := &fakeStore{doc: state.Document{"hamilton": {"12/25/2025"}}}
	notifier := &fakeNotifier{}

	err := newRunner(source, store, notifier, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, notifier.payloads)
	assert.Nil(t, store.saved, "state must not be rewritten when nothing changed")
}

func TestRunEmptySnapshotIsSuccess(t *testing.T) {
	store := &fakeStore{doc: state.Document{"hamilton": {"12/25/2025"}}}
	notifier := &fakeNotifier{}

	err := newRunner(&fakeSource{}, store, notifier, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notifier.payloads)
	assert.Nil(t, store.saved)
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	source := &fakeSource{err: errors.New("site unreachable")}
	store := &fakeStore{}

	err := newRunner(source, store, &fakeNotifier{}, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch availability")
	assert.Nil(t, store.saved, "no state mutation on data source failure")
}

func TestRunLockFailureAbortsBeforeFetch(t *testing.T) {
	source := &fakeSource{err: errors.New("fetch should not be reached")}
	store := &fakeStore{acquireErr: state.ErrLockTimeout}

	err := newRunner(source, store, &fakeNotifier{}, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, state.ErrLockTimeout))
}

func TestRunNotifyFailureStillCommits(t *testing.T) {
	source := &fakeSource{listings: []snapshot.Listing{
		{Title: "Hamilton", Dates: []string{"12/25/2025"}},
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{err: errors.New("webhook down")}

	err := newRunner(source, store, notifier, Options{}).Run(context.Background())
	require.NoError(t, err, "delivery failure is not fatal by default")
	require.NotNil(t, store.saved)
	assert.Equal(t, state.Document{"hamilton": {"12/25/2025"}}, *store.saved)
}

func TestRunNotifyFailureFatalWhenConfigured(t *testing.T) {
	source := &fakeSource{listings: []snapshot.Listing{
		{Title: "Hamilton", Dates: []string{"12/25/2025"}},
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{err: errors.New("webhook down")}

	err := newRunner(source, store, notifier, Options{FailOnNotifyError: true}).Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, store.saved, "state commits even when the failure is fatal")
}

func TestRunRestrictsToDesiredTitles(t *testing.T) {
	source := &fakeSource{listings: []snapshot.Listing{
		{Title: "Hamilton", Dates: []string{"12/25/2025"}},
		{Title: "Some Other Show", Dates: []string{"12/26/2025"}},
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	err := newRunner(source, store, notifier, Options{Titles: []string{"hamilton"}}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, notifier.payloads, 1)
	require.Len(t, notifier.payloads[0].Shows, 1)
	assert.Equal(t, "Hamilton", notifier.payloads[0].Shows[0].Title)
	assert.NotContains(t, *store.saved, "some other show")
}

func TestRunAppliesDateFilter(t *testing.T) {
	filter := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{listings: []snapshot.Listing{
		{Title: "Hamilton", Dates: []string{"12/25/2025", "01/01/2026"}},
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	opts := Options{Filter: &filter, FilterLabel: "01/01/2026"}
	err := newRunner(source, store, notifier, opts).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, notifier.payloads, 1)
	assert.Equal(t, "01/01/2026", notifier.payloads[0].FilterDate)
	assert.Equal(t, []string{"01/01/2026"}, notifier.payloads[0].Shows[0].Dates)
	assert.Equal(t, state.Document{"hamilton": {"01/01/2026"}}, *store.saved)
}

func TestRunPrunesWhenConfigured(t *testing.T) {
	source := &fakeSource{listings: []snapshot.Listing{
		{Title: "Hamilton", Dates: []string{"12/25/2025", "01/01/2026"}},
	}}
	store := &fakeStore{doc: state.Document{
		"hamilton": {"12/25/2025"},
		"closed":   {"11/01/2025"},
	}}
	notifier := &fakeNotifier{}

	err := newRunner(source, store, notifier, Options{PruneMissing: true}).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, store.saved)
	assert.NotContains(t, *store.saved, "closed")
	assert.Equal(t, []string{"12/25/2025", "01/01/2026"}, (*store.saved)["hamilton"])
}

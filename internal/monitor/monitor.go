// Package monitor runs one batch pass: fetch, normalize, diff against
// persisted state, notify, commit.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mantene/tdf-alerts/internal/diff"
	"github.com/Mantene/tdf-alerts/internal/notify"
	"github.com/Mantene/tdf-alerts/internal/snapshot"
	"github.com/Mantene/tdf-alerts/internal/state"
)

// Source produces one availability snapshot's raw listings, or an error
// when no snapshot could be produced at all.
type Source interface {
	FetchAvailability(ctx context.Context) ([]snapshot.Listing, error)
}

// Store persists alerted state and serializes overlapping invocations.
type Store interface {
	Acquire(ctx context.Context) (release func(), err error)
	Load(ctx context.Context) (state.Document, error)
	Save(ctx context.Context, doc state.Document) error
}

// Notifier delivers a payload through the configured channel.
type Notifier interface {
	Name() string
	Dispatch(ctx context.Context, p notify.Payload) error
}

// Options carries the run policy derived from configuration.
type Options struct {
	// Titles scopes the snapshot to the desired shows.
	Titles []string
	// Filter restricts diffing to a single date when non-nil.
	Filter *time.Time
	// FilterLabel is the rendered form of Filter for alert output.
	FilterLabel string
	// DateLayout is the canonical date layout for state and output.
	DateLayout string
	// PruneMissing drops state entries for titles absent from the
	// current snapshot at commit time.
	PruneMissing bool
	// FailOnNotifyError makes a failed delivery fail the run. State is
	// committed either way.
	FailOnNotifyError bool
}

// Runner wires the collaborators for one run.
type Runner struct {
	source   Source
	store    Store
	notifier Notifier
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
}

// New creates a runner.
func New(source Source, store Store, notifier Notifier, opts Options, logger *slog.Logger) *Runner {
	return &Runner{
		source:   source,
		store:    store,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Run executes one pass. A run that finds nothing new is a success and
// leaves state untouched. The state lock covers the whole run; failing
// to take it aborts before anything is read or written.
func (r *Runner) Run(ctx context.Context) error {
	release, err := r.store.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	defer release()

	listings, err := r.source.FetchAvailability(ctx)
	if err != nil {
		return fmt.Errorf("fetch availability: %w", err)
	}

	snap := snapshot.Normalize(listings, r.opts.DateLayout, r.logger).Restrict(r.opts.Titles)

	doc, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	previous := doc.DateSets(r.opts.DateLayout, r.logger)

	res := diff.Compute(previous, snap, r.opts.Filter)

	var notified bool
	var notifyErr error
	var stateWritten bool

	if !res.Empty() {
		payload := notify.BuildPayload(res, snap, r.opts.FilterLabel, r.opts.DateLayout, r.now())
		if notifyErr = r.notifier.Dispatch(ctx, payload); notifyErr != nil {
			// Commit proceeds regardless so a flaky channel doesn't
			// re-alert the same dates forever once it recovers.
			r.logger.Error("Notification failed", "channel", r.notifier.Name(), "error", notifyErr)
		} else {
			notified = true
		}

		merged := diff.Commit(previous, res, snap, r.opts.PruneMissing)
		if err := r.store.Save(ctx, state.FromDateSets(merged, r.opts.DateLayout)); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		stateWritten = true
	}

	r.logger.Info("Run complete",
		"new_titles", len(res.New),
		"updated_titles", len(res.Updated),
		"unchanged_titles", len(res.Unchanged),
		"notified", notified,
		"channel", r.notifier.Name(),
		"state_written", stateWritten)

	if notifyErr != nil && r.opts.FailOnNotifyError {
		return fmt.Errorf("notification: %w", notifyErr)
	}
	return nil
}

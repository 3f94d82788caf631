// Package state persists the record of previously alerted availability.
// State lives in a local JSON file by default, or in a Google Cloud
// Storage object when a bucket is configured.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"github.com/gofrs/flock"
	"google.golang.org/api/option"
)

// ErrLockTimeout is returned when another invocation holds the state lock
// for longer than the configured bound.
var ErrLockTimeout = errors.New("state: lock not acquired within timeout")

const lockRetryDelay = 250 * time.Millisecond

// Store handles state persistence and cross-invocation mutual exclusion.
type Store struct {
	client      *storage.Client
	logger      *slog.Logger
	lock        *flock.Flock
	localPath   string
	bucket      string
	object      string
	lockTimeout time.Duration
}

// Options configures a Store.
type Options struct {
	// Path is the local state file. Used directly when Bucket is empty;
	// its base name becomes the object name otherwise.
	Path string
	// Bucket, when set, selects the Cloud Storage backend.
	Bucket string
	// CredentialsFile optionally points at a service account key for the
	// Cloud Storage client.
	CredentialsFile string
	// LockTimeout bounds the wait for the advisory lock.
	LockTimeout time.Duration
}

// New creates a state store.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	s := &Store{
		logger:      logger,
		localPath:   opts.Path,
		bucket:      opts.Bucket,
		object:      filepath.Base(opts.Path),
		lockTimeout: opts.LockTimeout,
	}

	if opts.Bucket != "" {
		var clientOpts []option.ClientOption
		if opts.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
		}
		client, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		s.client = client
		return s, nil
	}

	s.lock = flock.New(opts.Path + ".lock")
	return s, nil
}

// Acquire takes the advisory lock that serializes overlapping invocations,
// waiting at most the configured timeout, and returns the release func.
// The Cloud Storage backend has no advisory lock: object replacement is
// atomic and last-writer-wins, so Acquire is a no-op there.
func (s *Store) Acquire(ctx context.Context) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(lockCtx, lockRetryDelay)
	if !locked {
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w (waited %s for %s)", ErrLockTimeout, s.lockTimeout, s.lock.Path())
		}
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}

	s.logger.Debug("State lock acquired", "path", s.lock.Path())
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("Failed to release state lock", "path", s.lock.Path(), "error", err)
		}
	}, nil
}

// Load reads the persisted state. A missing file or object yields an empty
// document, and malformed content is treated as empty with a warning: the
// monitor keeps running and at worst re-alerts. Only a transport failure
// against Cloud Storage is an error, since overwriting remote state after
// a failed read would lose it.
func (s *Store) Load(ctx context.Context) (Document, error) {
	var data []byte

	if s.bucket == "" {
		var err error
		data, err = os.ReadFile(s.localPath)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("State file unreadable, starting fresh", "path", s.localPath, "error", err)
			} else {
				s.logger.Info("No existing state file, starting fresh", "path", s.localPath)
			}
			return Document{}, nil
		}
	} else {
		var found bool
		var err error
		data, found, err = s.readObject(ctx)
		if err != nil {
			return nil, err
		}
		if !found {
			s.logger.Info("No existing state object, starting fresh", "bucket", s.bucket, "object", s.object)
			return Document{}, nil
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("State content malformed, starting fresh", "error", err)
		return Document{}, nil
	}
	if doc == nil {
		doc = Document{}
	}

	s.logger.Debug("State loaded", "titles", len(doc))
	return doc, nil
}

// Save writes the state atomically: to a temp file renamed over the old
// one locally, or as a single object write remotely.
func (s *Store) Save(ctx context.Context, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if s.bucket == "" {
		tmp, err := os.CreateTemp(filepath.Dir(s.localPath), filepath.Base(s.localPath)+".tmp-*")
		if err != nil {
			return fmt.Errorf("create temp state file: %w", err)
		}
		tmpName := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("write temp state file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("close temp state file: %w", err)
		}
		if err := os.Rename(tmpName, s.localPath); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("replace state file: %w", err)
		}
		s.logger.Info("State saved", "path", s.localPath, "titles", len(doc))
		return nil
	}

	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write state object: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close state writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying state save after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save state after retries: %w", err)
	}

	s.logger.Info("State saved", "bucket", s.bucket, "object", s.object, "titles", len(doc))
	return nil
}

// Reset removes the persisted state entirely. Removing state that does
// not exist is not an error.
func (s *Store) Reset(ctx context.Context) error {
	if s.bucket == "" {
		if err := os.Remove(s.localPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove state file: %w", err)
		}
		s.logger.Info("State reset", "path", s.localPath)
		return nil
	}

	if err := s.client.Bucket(s.bucket).Object(s.object).Delete(ctx); err != nil &&
		!errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete state object: %w", err)
	}
	s.logger.Info("State reset", "bucket", s.bucket, "object", s.object)
	return nil
}

func (s *Store) readObject(ctx context.Context) (data []byte, found bool, err error) {
	err = retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(openErr)
				}
				return fmt.Errorf("open state reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close state reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read state object: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying state load after error", "attempt", n, "error", retryErr)
		}),
	)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load state after retries: %w", err)
	}
	return data, true, nil
}

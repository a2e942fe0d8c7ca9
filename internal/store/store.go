// internal/store/store.go
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"loan-manager/internal/models"
)

var (
	// ErrNotFound is returned by Find when no record exists for the customer.
	ErrNotFound = errors.New("application not found")
	// ErrInvalidApplication is returned by Save for a record without a customer number.
	ErrInvalidApplication = errors.New("application has no customer number")
)

// ApplicationStore keeps one application record per customer plus an
// exclusive-processing marker per customer.
//
// Save upserts the record, refreshes UpdatedAt on the caller's value and sets
// or clears the marker from the record's status. TryLock sets the marker only
// if it is absent and reports whether it did. Unlock clears it unconditionally.
type ApplicationStore interface {
	Find(ctx context.Context, customerNumber string) (*models.LoanApplication, error)
	Save(ctx context.Context, app *models.LoanApplication) error
	TryLock(ctx context.Context, customerNumber string) (bool, error)
	Unlock(ctx context.Context, customerNumber string) error
	HasActiveProcess(ctx context.Context, customerNumber string) (bool, error)
}

// Option configures a store implementation.
type Option func(*options)

type options struct {
	now       func() time.Time
	keyPrefix string
}

// WithClock replaces the time source used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithKeyPrefix sets the key namespace of the redis store.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if p := strings.Trim(prefix, ":"); p != "" {
			o.keyPrefix = p
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:       func() time.Time { return time.Now().UTC() },
		keyPrefix: "lms",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

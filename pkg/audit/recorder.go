package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type recorder struct {
	storage Storage
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorder)

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a recorder backed by storage.
func NewRecorder(storage Storage, opts ...RecorderOption) Recorder {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	r := &recorder{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record fills in ID and CreatedAt when empty, validates and stores rec.
func (r *recorder) Record(ctx context.Context, rec Record) (Record, error) {
	rec = Stamp(rec, r.now())
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	if err := r.storage.Store(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Stamp assigns a fresh ID and the given creation time when they are unset.
// Stores that write audit rows inside their own transaction use it directly.
func Stamp(rec Record, now time.Time) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
	return rec
}

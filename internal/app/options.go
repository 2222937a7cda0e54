package app

import (
	"time"

	"github.com/google/uuid"
)

type options struct {
	now      func() time.Time
	newID    func() string
	joinCode func() (string, error)
}

// Option customizes a service. Tests use it for deterministic clocks and ids.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides uuid-based id generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithJoinCodeGenerator overrides random join codes.
func WithJoinCodeGenerator(next func() (string, error)) Option {
	return func(o *options) { o.joinCode = next }
}

func buildOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
		joinCode: NewJoinCode,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

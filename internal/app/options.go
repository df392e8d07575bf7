package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultLeaseTTL = 5 * time.Second

// Option tunes the registry, engine and reports.
type Option func(*options)

type options struct {
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
	events   EventPublisher
	observer Observer
	random   *Randomizer
	guard    StartGuard
	leaseTTL time.Duration
}

func buildOptions(opts []Option) options {
	o := options{
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
		log:      zerolog.Nop(),
		events:   nopPublisher{},
		observer: nopObserver{},
		leaseTTL: defaultLeaseTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.random == nil {
		o.random = NewRandomizer(time.Now().UnixNano())
	}
	if o.guard == nil {
		o.guard = NewLocalStartGuard()
	}
	return o
}

// WithClock replaces the wall clock; tests use it for deterministic windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs replaces the id generator.
func WithIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithPublisher(p EventPublisher) Option {
	return func(o *options) {
		if p != nil {
			o.events = p
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func WithRandomizer(r *Randomizer) Option {
	return func(o *options) { o.random = r }
}

// WithStartGuard sets the lease provider used by Start and the lease lifetime.
func WithStartGuard(g StartGuard, ttl time.Duration) Option {
	return func(o *options) {
		o.guard = g
		if ttl > 0 {
			o.leaseTTL = ttl
		}
	}
}

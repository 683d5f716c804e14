package swr

import (
	"context"
	"reflect"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Fetcher produces data for a resolved key argument. It may block; the engine
// never inspects the shape of returned errors.
type Fetcher func(ctx context.Context, arg any) (any, error)

// Config configures an Engine. Start from DefaultConfig and override what you
// need; New rejects configurations that fail Validate.
type Config struct {
	// Fetcher is the function invoked to (re)fetch a key's data. Revalidate
	// is a no-op when no fetcher is configured.
	Fetcher Fetcher

	// Compare decides whether freshly fetched data equals the cached value,
	// in which case the existing reference is kept and no data change is
	// published. Defaults to reflect.DeepEqual. Errors are never compared.
	Compare func(a, b any) bool

	// DedupingInterval is the grace period during which a settled in-flight
	// record still absorbs duplicate revalidations for its key.
	DedupingInterval time.Duration

	// LoadingTimeout is how long the first-ever fetch for a key may run
	// before OnLoadingSlow fires.
	LoadingTimeout time.Duration

	// FocusThrottleInterval rate-limits focus-triggered revalidations per
	// registered consumer.
	FocusThrottleInterval time.Duration

	// ErrorRetryInterval is the base delay of the exponential retry backoff.
	ErrorRetryInterval time.Duration

	// ErrorRetryCount caps retry attempts after a failed fetch. Zero means
	// unlimited.
	ErrorRetryCount int

	// ShouldRetryOnError approves or rejects retrying a given fetch error.
	// Defaults to retrying every error.
	ShouldRetryOnError func(err error) bool

	// RevalidateOnFocus and RevalidateOnReconnect are the defaults applied
	// to registered consumers, and also gate the retry policy: when both are
	// disabled, retries run even while the consumer is inactive because no
	// other trigger would ever refresh the key.
	RevalidateOnFocus     bool
	RevalidateOnReconnect bool

	// IsPaused, IsOnline and IsVisible are activity predicates supplied by
	// the environment. Defaults: never paused, always online, always
	// visible.
	IsPaused  func() bool
	IsOnline  func() bool
	IsVisible func() bool

	// OnFocus and OnReconnect register the engine with environment event
	// sources. Each receives the engine's trigger callback and returns a
	// detach function. Both are optional.
	OnFocus     func(cb func()) (detach func())
	OnReconnect func(cb func()) (detach func())

	// Lifecycle callbacks. None of them is ever invoked for a deduped
	// joiner, only for the dispatcher of the underlying fetch.
	OnLoadingSlow func(key string)
	OnSuccess     func(data any, key string)
	OnError       func(err error, key string)
	OnDiscarded   func(key string)

	// OnErrorRetry replaces the built-in exponential backoff. It receives
	// the failed attempt's error, key and retry count plus the retry
	// trigger, and owns the scheduling decision entirely.
	OnErrorRetry func(err error, key string, retryCount int, retry func())

	// Logger receives engine diagnostics. Nil disables logging.
	Logger Logger
}

// DefaultConfig returns a Config populated with the standard intervals and
// predicates. The fetcher is left unset.
func DefaultConfig() Config {
	return Config{
		Compare:               reflect.DeepEqual,
		DedupingInterval:      2 * time.Second,
		LoadingTimeout:        3 * time.Second,
		FocusThrottleInterval: 5 * time.Second,
		ErrorRetryInterval:    5 * time.Second,
		ErrorRetryCount:       0,
		ShouldRetryOnError:    func(error) bool { return true },
		RevalidateOnFocus:     true,
		RevalidateOnReconnect: true,
		IsPaused:              func() bool { return false },
		IsOnline:              func() bool { return true },
		IsVisible:             func() bool { return true },
		Logger:                NopLogger{},
	}
}

// Validate checks whether the configuration values are usable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DedupingInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.LoadingTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.FocusThrottleInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.ErrorRetryInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.ErrorRetryCount, validation.Min(0)),
	)
}

// withDefaults fills the optional function fields a zero-initialized Config
// would otherwise leave nil.
func (c Config) withDefaults() Config {
	if c.Compare == nil {
		c.Compare = reflect.DeepEqual
	}
	if c.ShouldRetryOnError == nil {
		c.ShouldRetryOnError = func(error) bool { return true }
	}
	if c.IsPaused == nil {
		c.IsPaused = func() bool { return false }
	}
	if c.IsOnline == nil {
		c.IsOnline = func() bool { return true }
	}
	if c.IsVisible == nil {
		c.IsVisible = func() bool { return true }
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	return c
}

package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// Config contains backoff settings
type Config struct {
	// MaxRetries is the number of re-runs after the first attempt (0 = single attempt)
	MaxRetries int
	// InitialInterval is the first backoff interval (default: 100ms)
	InitialInterval time.Duration
	// MaxInterval caps the backoff interval (default: 5s)
	MaxInterval time.Duration
	// Multiplier grows the interval after each attempt (default: 2.0)
	Multiplier float64
	// JitterFactor in [0,1] spreads the interval by ±factor
	JitterFactor float64
}

// DefaultConfig returns the backoff used by consumers and workers
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is the function to be retried
type Operation func(ctx context.Context) error

// PermanentError stops the retry loop immediately
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks an error as not retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result describes a finished retry loop
type Result struct {
	// Err is nil on success, the unwrapped permanent error, ErrMaxRetriesExceeded or ErrContextCanceled
	Err error
	// Attempts counts every call of the operation
	Attempts int
	// TotalDuration includes backoff waits
	TotalDuration time.Duration
	// LastError is the error returned by the last attempt
	LastError error
}

// Cause returns the error the operation itself produced, falling back to Err
func (r *Result) Cause() error {
	if r.Err == nil {
		return nil
	}
	if r.LastError != nil {
		return r.LastError
	}
	return r.Err
}

// Retrier runs operations with exponential backoff
type Retrier struct {
	config Config
}

// New creates a Retrier, filling zero values with defaults
func New(config *Config) *Retrier {
	def := DefaultConfig()
	if config == nil {
		config = def
	}
	c := *config
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = def.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	c.JitterFactor = math.Max(0, math.Min(1, c.JitterFactor))
	return &Retrier{config: c}
}

// RetryCallback is called before each backoff wait
type RetryCallback func(attempt int, err error, nextInterval time.Duration)

// Do executes op until it succeeds, returns a permanent error or the budget runs out
func (r *Retrier) Do(ctx context.Context, op Operation) *Result {
	return r.DoWithCallback(ctx, op, nil)
}

// DoWithCallback is Do with a hook invoked before every wait
func (r *Retrier) DoWithCallback(ctx context.Context, op Operation, callback RetryCallback) *Result {
	start := time.Now()
	res := &Result{}
	finish := func(err error) *Result {
		res.Err = err
		res.TotalDuration = time.Since(start)
		return res
	}

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return finish(ErrContextCanceled)
		}

		res.Attempts = attempt + 1
		err := op(ctx)
		if err == nil {
			return finish(nil)
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			res.LastError = perm.Err
			return finish(perm.Err)
		}
		res.LastError = err

		if attempt == r.config.MaxRetries {
			break
		}

		wait := r.interval(attempt)
		if callback != nil {
			callback(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return finish(ErrContextCanceled)
		case <-timer.C:
		}
	}

	return finish(ErrMaxRetriesExceeded)
}

func (r *Retrier) interval(attempt int) time.Duration {
	d := float64(r.config.InitialInterval) * math.Pow(r.config.Multiplier, float64(attempt))
	if r.config.JitterFactor > 0 {
		d += (rand.Float64()*2 - 1) * d * r.config.JitterFactor
	}
	if d > float64(r.config.MaxInterval) {
		d = float64(r.config.MaxInterval)
	}
	if d <= 0 {
		d = float64(r.config.InitialInterval)
	}
	return time.Duration(d)
}

// Do is a shortcut for New(config).Do
func Do(ctx context.Context, config *Config, op Operation) *Result {
	return New(config).Do(ctx, op)
}

// DoWithCallback is a shortcut for New(config).DoWithCallback
func DoWithCallback(ctx context.Context, config *Config, op Operation, callback RetryCallback) *Result {
	return New(config).DoWithCallback(ctx, op, callback)
}

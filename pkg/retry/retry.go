// Package retry provides exponential backoff for reconnecting to a rosbridge gateway
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`   // 0 = retry until ctx is done
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"` // Delay before the second attempt
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`         // Upper bound for any delay
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`       // Backoff multiplier (typically 2.0)
	AddJitter    bool          `json:"add_jitter" yaml:"add_jitter"`       // Add up to 25% random delay
}

// DefaultConfig returns the reconnect policy used when none is configured
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  0,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Quick returns a config for fast, bounded retries (useful in tests and startup probes)
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
	}
}

// Validate checks the config for values Do cannot work with
func (c Config) Validate() error {
	if c.InitialDelay < 0 {
		return errors.New("retry: InitialDelay cannot be negative")
	}
	if c.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if c.Multiplier < 0 {
		return errors.New("retry: Multiplier cannot be negative")
	}
	if c.MaxAttempts < 0 {
		return errors.New("retry: MaxAttempts cannot be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier > 1000 {
		c.Multiplier = 1000
	}
	return c
}

// Backoff returns the delay before attempt n+1, without jitter. Attempt counts from 1.
func (c Config) Backoff(attempt int) time.Duration {
	c = c.withDefaults()
	delay := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= c.Multiplier
		if delay >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	return time.Duration(delay)
}

// OnRetry is called after a failed attempt, before sleeping
type OnRetry func(attempt int, err error, delay time.Duration)

// Do executes fn with exponential backoff until it succeeds, returns a
// non-retryable error, the attempt budget is spent, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return DoNotify(ctx, cfg, fn, nil)
}

// DoNotify is Do with a hook invoked before every backoff sleep
func DoNotify(ctx context.Context, cfg Config, fn func() error, notify OnRetry) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}
		if cfg.MaxAttempts != 0 && attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff(attempt)
		if cfg.AddJitter && delay >= 4 {
			randMu.Lock()
			delay += time.Duration(randSource.Int63n(int64(delay / 4)))
			randMu.Unlock()
		}
		if notify != nil {
			notify(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

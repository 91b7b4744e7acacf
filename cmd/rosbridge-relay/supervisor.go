package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/semstreams-rosbridge/errors"
	"github.com/c360/semstreams-rosbridge/pkg/retry"
)

// gateway is the part of *rosbridge.Connection the supervisor drives
type gateway interface {
	Connect(ctx context.Context, host string, port int) error
	Done() <-chan struct{}
	Pump()
	Pending() int
}

// supervisor keeps one gateway session alive. The connection itself never
// reconnects; each lost session starts a new backoff sequence here.
type supervisor struct {
	conn     gateway
	host     string
	port     int
	policy   retry.Config
	interval time.Duration
	logger   *slog.Logger
}

// run connects, pumps until the session ends, and repeats until ctx is done.
// It returns nil on cancellation and the last error when the policy gives up.
func (s *supervisor) run(ctx context.Context) error {
	for {
		err := retry.DoNotify(ctx, s.policy, func() error {
			err := s.conn.Connect(ctx, s.host, s.port)
			if errors.Is(err, errors.ErrConfiguration) {
				return retry.NonRetryable(err)
			}
			return err
		}, func(attempt int, err error, delay time.Duration) {
			s.logger.Warn("Gateway connect failed, retrying",
				"attempt", attempt, "delay", delay, "error", err)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "supervisor", "run", "connect gateway")
		}

		if !s.pump(ctx) {
			return nil
		}
		s.logger.Warn("Gateway session ended, reconnecting")
	}
}

// pump delivers queued messages until the session ends (true) or ctx is
// done (false)
func (s *supervisor) pump(ctx context.Context) bool {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	done := s.conn.Done()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-done:
			// Flush the ended session's queue so nothing stale survives the backoff
			s.conn.Pump()
			for s.conn.Pending() > 0 {
				s.conn.Pump()
			}
			return true
		case <-ticker.C:
			s.conn.Pump()
		}
	}
}

package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/lalmajed/citysh/internal/umaps"
)

// Class tells the retry policy how to treat a fetch failure.
type Class int

const (
	// ClassTransient failures are retried with exponential backoff.
	ClassTransient Class = iota
	// ClassFatal failures abort the run immediately.
	ClassFatal
	// ClassCanceled means the caller's context ended, not the portal.
	ClassCanceled
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	case ClassCanceled:
		return "canceled"
	}
	return "unknown"
}

// Classify sorts a fetch error into retry classes. Throttling, server
// 5xx, malformed payloads and network hiccups are transient. Client
// errors like a bad query or a missing layer are fatal, retrying them
// only hammers the portal with the same rejected request.
func Classify(err error) Class {
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Per-request timeout, the next attempt may get through.
		return ClassTransient
	}

	var throttle *umaps.ThrottleError
	if errors.As(err, &throttle) {
		return ClassTransient
	}
	var status *umaps.StatusError
	if errors.As(err, &status) {
		if status.StatusCode == 429 || status.StatusCode >= 500 {
			return ClassTransient
		}
		return ClassFatal
	}
	var server *umaps.ServerError
	if errors.As(err, &server) {
		if server.Code >= 500 {
			return ClassTransient
		}
		return ClassFatal
	}
	var decode *umaps.DecodeError
	if errors.As(err, &decode) {
		// A truncated or garbled body is usually a one-off. The
		// attempt ceiling turns a repeat offender fatal.
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	return ClassTransient
}

// BackoffOptions tunes the retry policy. Zero values get the portal
// defaults (5s base, 5m cap, 5 attempts).
type BackoffOptions struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	// OnThrottle is invoked with the chosen delay whenever the portal
	// returned a throttling response, so the rate limiter can hold off
	// all requests, not just the retried one.
	OnThrottle func(d time.Duration)
}

// Backoff retries transient fetch failures with exponentially growing,
// jittered delays.
type Backoff struct {
	opts BackoffOptions
}

func NewBackoff(opts BackoffOptions) Backoff {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 5 * time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 5 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return Backoff{opts: opts}
}

// Delay computes the wait before retry number attempt (0-based): the
// base doubled per attempt, plus up to one base of jitter, capped at
// MaxDelay.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := b.opts.BaseDelay * (1 << uint(attempt))
	if delay <= 0 || delay > b.opts.MaxDelay {
		return b.opts.MaxDelay
	}
	delay += time.Duration(rand.Int63n(int64(b.opts.BaseDelay)))
	if delay > b.opts.MaxDelay {
		return b.opts.MaxDelay
	}
	return delay
}

// Do runs op until it succeeds, fails fatally, or exhausts the attempt
// ceiling. The returned error is nil on success and otherwise means the
// page is lost: either a fatal failure, a transient one past the
// ceiling, or a canceled context.
func (b Backoff) Do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < b.opts.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		switch Classify(err) {
		case ClassCanceled:
			return err
		case ClassFatal:
			return err
		}

		if attempt+1 >= b.opts.MaxAttempts {
			break
		}

		delay := b.Delay(attempt)
		var throttle *umaps.ThrottleError
		if errors.As(err, &throttle) && b.opts.OnThrottle != nil {
			b.opts.OnThrottle(delay)
		}

		slog.WarnContext(ctx, "transient fetch failure, backing off",
			"attempt", attempt+1,
			"max_attempts", b.opts.MaxAttempts,
			"delay", delay,
			"err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", b.opts.MaxAttempts, err)
}

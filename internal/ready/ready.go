// Package ready probes service endpoints for externally observable
// readiness: the signal that a service can accept real traffic, distinct
// from "container exists".
package ready

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stackctl/stackctl/internal/stack"
)

const (
	// DefaultInterval is the poll interval between probe attempts.
	DefaultInterval = 500 * time.Millisecond

	// DefaultTimeout is the default maximum wait for readiness.
	DefaultTimeout = 60 * time.Second

	// attemptTimeout bounds a single probe attempt, independent of the
	// overall budget.
	attemptTimeout = 2 * time.Second
)

// ErrTimedOut reports that a service never became ready within its
// startup budget. It is the single signal separating "slow" from
// "broken"; the caller decides whether to abort or continue.
var ErrTimedOut = errors.New("readiness timed out")

// Checker performs a single readiness probe against an address.
type Checker interface {
	Check(ctx context.Context, addr string) error
}

// ForCheck returns the Checker for a declared readiness check.
func ForCheck(c *stack.Check) Checker {
	switch c.Kind {
	case stack.CheckHTTP:
		return &HTTP{Path: c.Path}
	case stack.CheckGRPC:
		return GRPC{}
	default:
		return TCP{}
	}
}

// Sleep waits for d or until ctx is cancelled, returning ctx.Err() in
// the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Prober gates startup waves on readiness with a bounded retry loop.
//
// The zero value probes with the wall clock and real sleeps. Now and
// SleepFn are injectable so tests can simulate elapsed time without
// real delay; NewChecker is a seam for scripted checkers.
type Prober struct {
	Log        *slog.Logger
	Now        func() time.Time
	SleepFn    func(ctx context.Context, d time.Duration) error
	NewChecker func(c *stack.Check) Checker
}

// Probe polls the service's declared check until it succeeds or the
// overall timeout is exceeded. Connection refusal, a non-ready
// response, and per-attempt deadline expiry all mean "not yet ready"
// and trigger a retry; only the overall budget produces ErrTimedOut.
// Context cancellation returns ctx.Err(), distinct from ErrTimedOut.
// Services without a check return nil immediately.
func (p *Prober) Probe(ctx context.Context, svc *stack.Service) error {
	if !svc.Checked() {
		return nil
	}
	c := svc.Check
	timeout, interval := budget(c)
	checker := p.newChecker(c)
	log := p.log().With("service", svc.Name, "check", c.Kind, "addr", c.Address)

	start := p.now()
	var lastErr error
	for {
		err := p.attempt(ctx, checker, c.Address)
		if err == nil {
			log.Debug("ready", "elapsed", p.now().Sub(start))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		log.Debug("not ready yet", "error", err)

		if p.now().Sub(start) >= timeout {
			return fmt.Errorf("%w after %s (last error: %v)", ErrTimedOut, timeout, lastErr)
		}
		if err := p.sleep(ctx, interval); err != nil {
			return err
		}
		if p.now().Sub(start) >= timeout {
			return fmt.Errorf("%w after %s (last error: %v)", ErrTimedOut, timeout, lastErr)
		}
	}
}

// Once performs exactly one non-retried probe attempt. Used by status
// snapshots, which must never block waiting for readiness.
func (p *Prober) Once(ctx context.Context, svc *stack.Service) error {
	if !svc.Checked() {
		return nil
	}
	return p.attempt(ctx, p.newChecker(svc.Check), svc.Check.Address)
}

func (p *Prober) attempt(ctx context.Context, checker Checker, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()
	return checker.Check(ctx, addr)
}

func budget(c *stack.Check) (timeout, interval time.Duration) {
	timeout = DefaultTimeout
	interval = DefaultInterval
	if c.Timeout.Duration > 0 {
		timeout = c.Timeout.Duration
	}
	if c.Interval.Duration > 0 {
		interval = c.Interval.Duration
	}
	return timeout, interval
}

func (p *Prober) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Prober) sleep(ctx context.Context, d time.Duration) error {
	if p.SleepFn != nil {
		return p.SleepFn(ctx, d)
	}
	return Sleep(ctx, d)
}

func (p *Prober) newChecker(c *stack.Check) Checker {
	if p.NewChecker != nil {
		return p.NewChecker(c)
	}
	return ForCheck(c)
}

func (p *Prober) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

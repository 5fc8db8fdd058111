// Package controller drives the stack lifecycle: dependency-ordered
// wave startup gated on readiness, and mirror-ordered shutdown with
// graceful→forced escalation.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/matgreaves/run"
	"github.com/stackctl/stackctl/internal/manager"
	"github.com/stackctl/stackctl/internal/plan"
	"github.com/stackctl/stackctl/internal/ready"
	"github.com/stackctl/stackctl/internal/stack"
)

// DefaultGrace is the graceful-stop wait for services that don't
// declare their own.
const DefaultGrace = 10 * time.Second

// Controller owns one run at a time against a single RunState. Callers
// must serialize concurrent invocations themselves.
type Controller struct {
	Stack   *stack.Stack
	Manager manager.Manager
	Prober  *ready.Prober
	Log     *slog.Logger

	// Grace overrides DefaultGrace for services without their own.
	Grace time.Duration

	// Sleep applies settle delays; injectable so tests can simulate
	// elapsed time. Defaults to a cancellable timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Up starts the stack wave by wave. Within a wave, start calls are
// issued concurrently (members have no ordering relation); readiness
// gating for the entire wave completes before any later wave's start
// calls are issued. A launch error or readiness timeout aborts the run,
// deliberately leaving already-started services running for inspection.
func (c *Controller) Up(ctx context.Context) (*Report, error) {
	waves, err := plan.Waves(c.Stack, plan.Startup)
	if err != nil {
		return nil, err
	}

	rep := &Report{States: newRunState(c.Stack)}

	var steps run.Sequence
	for i, wave := range waves {
		steps = append(steps,
			c.startWave(i+1, wave, rep),
			c.gateWave(i+1, wave, rep),
		)
	}

	if err := steps.Run(ctx); err != nil {
		rep.Outcome = OutcomeAborted
		var le *LaunchError
		var rt *ReadinessTimeout
		switch {
		case errors.As(err, &le):
			rep.Failed, rep.Wave = le.Service, le.Wave
		case errors.As(err, &rt):
			rep.Failed, rep.Wave = rt.Service, rt.Wave
		}
		return rep, err
	}

	rep.Outcome = OutcomeCompleted
	return rep, nil
}

// startWave issues start calls to every wave member concurrently and
// reports the first launch failure, if any. Unlike readiness gating,
// in-flight start calls are always allowed to complete.
func (c *Controller) startWave(n int, wave plan.Wave, rep *Report) run.Runner {
	return run.Func(func(ctx context.Context) error {
		c.log().Info("starting wave", "wave", n, "services", wave.Names())
		for _, svc := range wave {
			rep.States[svc.Name] = StatusStarting
		}

		type launchFailure struct {
			name string
			err  error
		}

		var wg sync.WaitGroup
		errs := make(chan launchFailure, len(wave))

		for _, svc := range wave {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := c.Manager.Start(ctx, svc); err != nil {
					errs <- launchFailure{name: svc.Name, err: err}
				}
			}()
		}
		wg.Wait()
		close(errs)

		var cause *LaunchError
		for f := range errs {
			rep.States[f.name] = StatusFailed
			if cause == nil {
				cause = &LaunchError{Service: f.name, Wave: n, Err: f.err}
			}
		}
		if cause != nil {
			return cause
		}
		return nil
	})
}

// gateWave blocks until every checked member of the wave is ready,
// applying settle delays before later waves may start. A timeout marks
// the service Failed and aborts the whole run: a later wave must never
// be started on top of an unready dependency.
func (c *Controller) gateWave(n int, wave plan.Wave, rep *Report) run.Runner {
	return run.Func(func(ctx context.Context) error {
		for _, svc := range wave {
			if svc.Checked() {
				c.log().Info("waiting for readiness",
					"service", svc.Name, "wave", n, "check", svc.Check.Kind)
				if err := c.Prober.Probe(ctx, svc); err != nil {
					rep.States[svc.Name] = StatusFailed
					if errors.Is(err, ready.ErrTimedOut) {
						return &ReadinessTimeout{Service: svc.Name, Wave: n, Err: err}
					}
					return err
				}
			}
			rep.States[svc.Name] = StatusReady
			c.log().Info("ready", "service", svc.Name, "wave", n)

			if svc.Settle.Duration > 0 {
				c.log().Debug("settling", "service", svc.Name, "delay", svc.Settle.Duration)
				if err := c.sleep(ctx, svc.Settle.Duration); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Down stops the stack in mirror wave order: a service stops only after
// everything that depends on it was given its chance to stop. Individual
// failures never abort the run; anything still running after every wave
// has been processed gets exactly one forced-stop sweep, order-unsafe by
// design since graceful ordering has already been attempted.
func (c *Controller) Down(ctx context.Context) (*Report, error) {
	waves, err := plan.Waves(c.Stack, plan.Shutdown)
	if err != nil {
		return nil, err
	}

	rep := &Report{States: newRunState(c.Stack)}

	for i, wave := range waves {
		for _, svc := range wave {
			running, err := c.Manager.IsRunning(ctx, svc.Name)
			if err != nil {
				c.log().Warn("cannot query service, leaving for sweep",
					"service", svc.Name, "wave", i+1, "error", err)
				continue
			}
			if !running {
				rep.States[svc.Name] = StatusStopped
				continue
			}

			grace := svc.Grace.Duration
			if grace <= 0 {
				grace = c.grace()
			}
			c.log().Info("stopping", "service", svc.Name, "wave", i+1, "grace", grace)
			if err := c.Manager.Stop(ctx, svc.Name, grace); err != nil {
				c.log().Warn("graceful stop failed",
					"service", svc.Name, "wave", i+1, "error", err)
			}
			if still, err := c.Manager.IsRunning(ctx, svc.Name); err == nil && !still {
				rep.States[svc.Name] = StatusStopped
			}
		}
	}

	var stubborn []string
	for i := range c.Stack.Services {
		name := c.Stack.Services[i].Name
		if rep.States[name] == StatusStopped {
			continue
		}
		running, err := c.Manager.IsRunning(ctx, name)
		if err != nil {
			rep.StillRunning = append(rep.StillRunning, name)
			continue
		}
		if running {
			stubborn = append(stubborn, name)
		} else {
			rep.States[name] = StatusStopped
		}
	}

	for _, name := range stubborn {
		c.log().Warn("escalating to forced stop", "service", name)
		if err := c.Manager.ForceStop(ctx, name); err != nil {
			c.log().Warn("forced stop failed", "service", name, "error", err)
		}
	}
	for _, name := range stubborn {
		running, err := c.Manager.IsRunning(ctx, name)
		if err != nil || running {
			rep.StillRunning = append(rep.StillRunning, name)
			continue
		}
		rep.States[name] = StatusStopped
	}

	rep.Outcome = OutcomeCompleted
	return rep, nil
}

func (c *Controller) grace() time.Duration {
	if c.Grace > 0 {
		return c.Grace
	}
	return DefaultGrace
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return ready.Sleep(ctx, d)
}

func (c *Controller) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

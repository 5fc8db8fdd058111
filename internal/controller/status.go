package controller

import (
	"context"

	"github.com/stackctl/stackctl/internal/manager"
	"github.com/stackctl/stackctl/internal/ready"
	"github.com/stackctl/stackctl/internal/stack"
)

// ServiceHealth is one service's point-in-time snapshot.
type ServiceHealth struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// HealthReport is an ephemeral snapshot of the whole stack, recomputed
// from live queries on every call and never persisted.
type HealthReport struct {
	Services []ServiceHealth `json:"services"`
}

// Reporter produces health snapshots for operator display. Pure read:
// it has no effect on any run's state.
type Reporter struct {
	Stack   *stack.Stack
	Manager manager.Manager
	Prober  *ready.Prober
}

// Snapshot queries every service's live running state and, where a
// readiness check is declared, classifies health with exactly one
// non-retried probe attempt — it never blocks waiting for readiness.
// A manager query failure surfaces as a *TransportError.
func (r *Reporter) Snapshot(ctx context.Context) (*HealthReport, error) {
	rep := &HealthReport{Services: make([]ServiceHealth, 0, len(r.Stack.Services))}

	for i := range r.Stack.Services {
		svc := &r.Stack.Services[i]

		running, err := r.Manager.IsRunning(ctx, svc.Name)
		if err != nil {
			return nil, &TransportError{Service: svc.Name, Err: err}
		}

		h := ServiceHealth{Name: svc.Name, Running: running}
		switch {
		case !running:
			h.Detail = "not running"
		case svc.Checked():
			if err := r.Prober.Once(ctx, svc); err != nil {
				h.Detail = err.Error()
			} else {
				h.Healthy = true
			}
		default:
			// No check declared: running is the best signal there is.
			h.Healthy = true
			h.Detail = "no readiness check"
		}
		rep.Services = append(rep.Services, h)
	}

	return rep, nil
}

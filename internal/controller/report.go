package controller

import "github.com/stackctl/stackctl/internal/stack"

// Status tracks a service through one run. Transitions are monotonic
// forward, except Ready→Stopped during shutdown.
type Status string

const (
	StatusPending  Status = "pending"
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
	StatusStopped  Status = "stopped"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
)

// Report aggregates the outcome of one startup or shutdown run. The
// States map is the run's RunState; it is owned by the single active
// run and safe to read once the run returns.
type Report struct {
	Outcome Outcome
	States  map[string]Status

	// Failed and Wave identify the failing service and its 1-based
	// startup wave when Outcome is Aborted.
	Failed string
	Wave   int

	// StillRunning lists services that survived even the forced-stop
	// sweep of a shutdown run.
	StillRunning []string
}

func newRunState(st *stack.Stack) map[string]Status {
	states := make(map[string]Status, len(st.Services))
	for i := range st.Services {
		states[st.Services[i].Name] = StatusPending
	}
	return states
}

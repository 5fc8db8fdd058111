// Package manager defines the process-manager capability the lifecycle
// controller drives. The controller never shells out; everything it
// knows about running processes goes through this interface, which
// keeps a deterministic in-memory fake possible for tests.
package manager

import (
	"context"
	"time"

	"github.com/stackctl/stackctl/internal/stack"
)

// Manager creates, stops, and queries the stack's service processes.
type Manager interface {
	// Start launches the service, creating it first if needed.
	// Idempotent for services that are already running. An error means
	// the manager could not create or start the process at all —
	// distinct from "created but not yet healthy".
	Start(ctx context.Context, svc *stack.Service) error

	// Stop requests graceful termination, waiting up to grace before
	// the manager gives up on its own escalation.
	Stop(ctx context.Context, name string, grace time.Duration) error

	// ForceStop kills the service immediately.
	ForceStop(ctx context.Context, name string) error

	// IsRunning reports whether the named service's process currently
	// exists and is running. A service the manager has never seen is
	// simply not running; an error means the query itself failed.
	IsRunning(ctx context.Context, name string) (bool, error)
}

package commands

import (
	"context"
	"errors"

	"github.com/stackctl/stackctl/internal/controller"
	"github.com/stackctl/stackctl/internal/stack"
)

// Exit codes for the stackctl binary.
const (
	ExitOK        = 0
	ExitConfig    = 1 // bad flags, unparseable stack file, dependency cycle
	ExitAborted   = 2 // startup launch error, readiness timeout, or cancellation
	ExitTransport = 3 // a status query could not be performed
)

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var configErr *stack.ConfigError
	if errors.As(err, &configErr) {
		return ExitConfig
	}
	var transportErr *controller.TransportError
	if errors.As(err, &transportErr) {
		return ExitTransport
	}
	var launchErr *controller.LaunchError
	var timeoutErr *controller.ReadinessTimeout
	if errors.As(err, &launchErr) || errors.As(err, &timeoutErr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ExitAborted
	}
	return ExitConfig
}

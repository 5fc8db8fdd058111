package commands

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stackctl/stackctl/internal/controller"
	"github.com/stackctl/stackctl/internal/ready"
	"github.com/stackctl/stackctl/internal/stack"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", stack.Configf("duplicate service %q", "db"), ExitConfig},
		{"wrapped config", fmt.Errorf("load stack: %w", stack.Configf("bad")), ExitConfig},
		{"launch", &controller.LaunchError{Service: "web", Wave: 2, Err: errors.New("no such image")}, ExitAborted},
		{"readiness timeout", &controller.ReadinessTimeout{Service: "web", Wave: 2, Err: ready.ErrTimedOut}, ExitAborted},
		{"cancelled", context.Canceled, ExitAborted},
		{"deadline", fmt.Errorf("up: %w", context.DeadlineExceeded), ExitAborted},
		{"transport", &controller.TransportError{Service: "db", Err: errors.New("dial unix: no such file")}, ExitTransport},
		{"unknown", errors.New("boom"), ExitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

package controller_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackctl/stackctl/internal/controller"
	"github.com/stackctl/stackctl/internal/ready"
	"github.com/stackctl/stackctl/internal/stack"
)

func newReporter(st *stack.Stack, mgr *fakeManager, check probeFunc) *controller.Reporter {
	return &controller.Reporter{
		Stack:   st,
		Manager: mgr,
		Prober: &ready.Prober{
			NewChecker: func(*stack.Check) ready.Checker { return check },
		},
	}
}

func TestSnapshot(t *testing.T) {
	st := mustParse(t, chainYAML)
	mgr := newFakeManager()
	mgr.running["db"] = true
	mgr.running["web"] = true
	// bot not running

	attempts := 0
	rep, err := newReporter(st, mgr, func(ctx context.Context, addr string) error {
		attempts++
		return nil
	}).Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Services, 3)

	byName := map[string]controller.ServiceHealth{}
	for _, h := range rep.Services {
		byName[h.Name] = h
	}

	// Running without a declared check counts as healthy.
	assert.True(t, byName["db"].Running)
	assert.True(t, byName["db"].Healthy)
	assert.Equal(t, "no readiness check", byName["db"].Detail)

	assert.True(t, byName["web"].Running)
	assert.True(t, byName["web"].Healthy)

	assert.False(t, byName["bot"].Running)
	assert.False(t, byName["bot"].Healthy)
	assert.Equal(t, "not running", byName["bot"].Detail)

	// One probe attempt for the single running checked service; a
	// snapshot never retries and never probes stopped services.
	assert.Equal(t, 1, attempts)
}

func TestSnapshot_UnhealthyDetail(t *testing.T) {
	st := mustParse(t, chainYAML)
	mgr := newFakeManager()
	mgr.running["web"] = true

	rep, err := newReporter(st, mgr, func(ctx context.Context, addr string) error {
		return errors.New("connection refused")
	}).Snapshot(context.Background())
	require.NoError(t, err)

	for _, h := range rep.Services {
		if h.Name != "web" {
			continue
		}
		assert.True(t, h.Running)
		assert.False(t, h.Healthy)
		assert.Contains(t, h.Detail, "connection refused")
	}
}

func TestSnapshot_TransportError(t *testing.T) {
	st := mustParse(t, chainYAML)
	mgr := newFakeManager()
	mgr.queryErr["web"] = errors.New("daemon unreachable")

	rep, err := newReporter(st, mgr, nil).Snapshot(context.Background())
	assert.Nil(t, rep)

	var te *controller.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "web", te.Service)
}

package ready_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackctl/stackctl/internal/ready"
	"github.com/stackctl/stackctl/internal/stack"
)

// scriptedChecker fails a fixed number of times, then succeeds.
type scriptedChecker struct {
	mu        sync.Mutex
	calls     int
	failFirst int
}

func (s *scriptedChecker) Check(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFirst {
		return errors.New("connection refused")
	}
	return nil
}

func (s *scriptedChecker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeClock advances only when the prober sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

func checkedService(timeout, interval time.Duration) *stack.Service {
	return &stack.Service{
		Name: "web",
		Check: &stack.Check{
			Kind:     stack.CheckHTTP,
			Address:  "127.0.0.1:1",
			Timeout:  stack.Duration{Duration: timeout},
			Interval: stack.Duration{Duration: interval},
		},
	}
}

func newFakeProber(clk *fakeClock, checker ready.Checker) *ready.Prober {
	return &ready.Prober{
		Now:        clk.Now,
		SleepFn:    clk.sleep,
		NewChecker: func(*stack.Check) ready.Checker { return checker },
	}
}

func TestProbe_ReadyAfterRetries(t *testing.T) {
	clk := &fakeClock{}
	checker := &scriptedChecker{failFirst: 2}
	p := newFakeProber(clk, checker)

	err := p.Probe(context.Background(), checkedService(100*time.Millisecond, 10*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 3, checker.count())
}

func TestProbe_TimedOut(t *testing.T) {
	clk := &fakeClock{}
	checker := &scriptedChecker{failFirst: 1 << 30}
	p := newFakeProber(clk, checker)

	err := p.Probe(context.Background(), checkedService(100*time.Millisecond, 10*time.Millisecond))
	require.ErrorIs(t, err, ready.ErrTimedOut)
	assert.Contains(t, err.Error(), "last error")
	// The budget bounds the attempts: never more than timeout/interval+1.
	assert.LessOrEqual(t, checker.count(), 11)
}

func TestProbe_NoCheck(t *testing.T) {
	checker := &scriptedChecker{failFirst: 1 << 30}
	p := newFakeProber(&fakeClock{}, checker)

	err := p.Probe(context.Background(), &stack.Service{Name: "db"})
	require.NoError(t, err)
	assert.Zero(t, checker.count(), "no check declared, no probe issued")

	err = p.Probe(context.Background(), &stack.Service{
		Name:  "db",
		Check: &stack.Check{Kind: stack.CheckNone},
	})
	require.NoError(t, err)
	assert.Zero(t, checker.count())
}

func TestProbe_CancelledIsNotTimeout(t *testing.T) {
	clk := &fakeClock{}
	checker := &scriptedChecker{failFirst: 1 << 30}
	ctx, cancel := context.WithCancel(context.Background())

	p := &ready.Prober{
		Now: clk.Now,
		SleepFn: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
		NewChecker: func(*stack.Check) ready.Checker { return checker },
	}

	err := p.Probe(ctx, checkedService(time.Minute, time.Second))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ready.ErrTimedOut)
}

func TestOnce_SingleAttempt(t *testing.T) {
	checker := &scriptedChecker{failFirst: 1 << 30}
	p := newFakeProber(&fakeClock{}, checker)

	err := p.Once(context.Background(), checkedService(time.Minute, time.Second))
	require.Error(t, err)
	assert.Equal(t, 1, checker.count())
}

func TestForCheck(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{stack.CheckTCP, "ready.TCP"},
		{stack.CheckHTTP, "*ready.HTTP"},
		{stack.CheckGRPC, "ready.GRPC"},
	}
	for _, tt := range tests {
		checker := ready.ForCheck(&stack.Check{Kind: tt.kind})
		assert.Equal(t, tt.want, fmt.Sprintf("%T", checker))
	}
}

func TestTCPCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var checker ready.TCP
	require.NoError(t, checker.Check(ctx, ln.Addr().String()))

	addr := ln.Addr().String()
	ln.Close()
	assert.Error(t, checker.Check(ctx, addr), "closed port must not be ready")
}

func TestHTTPCheck(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Close()

	addr := ln.Addr().String()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	healthy := &ready.HTTP{Path: "/health"}
	require.NoError(t, healthy.Check(ctx, addr))

	// Non-2xx responses are not ready — a served error page is not a
	// ready service.
	broken := &ready.HTTP{Path: "/broken"}
	assert.Error(t, broken.Check(ctx, addr))

	missing := &ready.HTTP{Path: "/nope"}
	assert.Error(t, missing.Check(ctx, addr))
}

// Probing a real endpoint that starts listening late must converge.
func TestProbe_DelayedListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		ln2, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		defer ln2.Close()
		for {
			conn, err := ln2.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := &ready.Prober{}
	svc := &stack.Service{
		Name: "late",
		Check: &stack.Check{
			Kind:     stack.CheckTCP,
			Address:  addr,
			Timeout:  stack.Duration{Duration: 5 * time.Second},
			Interval: stack.Duration{Duration: 10 * time.Millisecond},
		},
	}
	require.NoError(t, p.Probe(context.Background(), svc))
}

package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type drainerFunc func(ctx context.Context) error

func (f drainerFunc) Drain(ctx context.Context) error {
	return f(ctx)
}

func TestCoordinator_SignalTriggersDrain(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	c := New(zap.NewNop(), WithSignalChannel(sigCh))
	assert.Equal(t, Running, c.State())

	drainStarted := make(chan struct{})
	release := make(chan struct{})
	d := drainerFunc(func(ctx context.Context) error {
		close(drainStarted)
		<-release
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Watch(context.Background(), d) }()

	sigCh <- syscall.SIGTERM

	select {
	case <-drainStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("drain was not started after signal")
	}
	assert.Equal(t, Draining, c.State())

	close(release)
	require.NoError(t, <-errCh)
	assert.Equal(t, Stopped, c.State())

	select {
	case <-c.Done():
	default:
		t.Error("Done() should be closed once stopped")
	}
}

func TestCoordinator_ContextCancelTriggersDrain(t *testing.T) {
	c := New(zap.NewNop(), WithSignalChannel(make(chan os.Signal)))

	drained := false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Watch(ctx, drainerFunc(func(ctx context.Context) error {
		drained = true
		// the drain context must outlive the cancelled parent
		assert.NoError(t, ctx.Err())
		return nil
	}))

	require.NoError(t, err)
	assert.True(t, drained)
	assert.Equal(t, Stopped, c.State())
}

func TestCoordinator_NoReentry(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	c := New(zap.NewNop(), WithSignalChannel(sigCh))
	sigCh <- os.Interrupt

	calls := 0
	d := drainerFunc(func(context.Context) error { calls++; return nil })

	require.NoError(t, c.Watch(context.Background(), d))
	assert.ErrorIs(t, c.Watch(context.Background(), d), ErrNotRunning)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Stopped, c.State())
}

func TestCoordinator_UnboundedByDefault(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	c := New(zap.NewNop(), WithSignalChannel(sigCh))
	sigCh <- os.Interrupt

	err := c.Watch(context.Background(), drainerFunc(func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return nil
	}))
	require.NoError(t, err)
}

func TestCoordinator_Timeout(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	c := New(zap.NewNop(), WithSignalChannel(sigCh), WithTimeout(20*time.Millisecond))
	sigCh <- os.Interrupt

	err := c.Watch(context.Background(), drainerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Stopped, c.State())
}

func TestCoordinator_DrainError(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	c := New(zap.NewNop(), WithSignalChannel(sigCh))
	sigCh <- os.Interrupt

	boom := errors.New("boom")
	err := c.Watch(context.Background(), drainerFunc(func(context.Context) error { return boom }))
	assert.ErrorIs(t, err, boom)
}

func TestCoordinator_ProcessSignal(t *testing.T) {
	// Keep SIGUSR1 from terminating the test binary before Watch subscribes
	guard := make(chan os.Signal, 16)
	signal.Notify(guard, syscall.SIGUSR1)
	defer signal.Stop(guard)

	c := New(zap.NewNop(), WithSignals(syscall.SIGUSR1))

	drained := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Watch(context.Background(), drainerFunc(func(context.Context) error {
			close(drained)
			return nil
		}))
	}()

	require.Eventually(t, func() bool {
		_ = syscall.Kill(os.Getpid(), syscall.SIGUSR1)
		select {
		case <-drained:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, <-errCh)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "draining", Draining.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "state(9)", State(9).String())
}

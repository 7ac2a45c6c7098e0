// Package shutdown turns termination signals into a graceful drain.
//
// A Coordinator moves through exactly one path:
//
//	Running -> Draining -> Stopped
//
// Running lasts until a signal arrives (or the parent context ends). The
// Drainer is then asked to stop accepting connections and wait for
// in-flight requests; once it returns the coordinator is Stopped. There is
// no way back to Running.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// State is the coordinator's lifecycle state
type State int32

const (
	Running State = iota
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrNotRunning is returned by Watch when the coordinator already drained
var ErrNotRunning = errors.New("shutdown coordinator is not running")

// Drainer stops accepting new work and blocks until in-flight work is done
// or ctx expires.
type Drainer interface {
	Drain(ctx context.Context) error
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithSignals replaces the default SIGINT/SIGTERM set
func WithSignals(sigs ...os.Signal) Option {
	return func(c *Coordinator) {
		c.signals = sigs
	}
}

// WithTimeout bounds the drain. Zero (the default) waits for every
// in-flight request however long it takes.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithSignalChannel reads signals from ch instead of subscribing to the
// process signals
func WithSignalChannel(ch <-chan os.Signal) Option {
	return func(c *Coordinator) {
		c.sigCh = ch
	}
}

// Coordinator converts a termination signal into a drain of a Drainer
type Coordinator struct {
	logger  *zap.Logger
	signals []os.Signal
	sigCh   <-chan os.Signal
	timeout time.Duration

	state atomic.Int32
	done  chan struct{}
}

// New creates a Coordinator in the Running state
func New(logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:  logger.Named("shutdown"),
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Done is closed once the coordinator reaches Stopped
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Watch blocks until a termination signal arrives or ctx ends, then drains d.
// It returns once the drain has finished.
func (c *Coordinator) Watch(ctx context.Context, d Drainer) error {
	if c.State() != Running {
		return ErrNotRunning
	}

	sigCh := c.sigCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, c.signals...)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case sig := <-sigCh:
		c.logger.Info("Received termination signal, draining", zap.String("signal", sig.String()))
	case <-ctx.Done():
		c.logger.Info("Context cancelled, draining")
	}

	if !c.state.CompareAndSwap(int32(Running), int32(Draining)) {
		return ErrNotRunning
	}

	drainCtx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(drainCtx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := d.Drain(drainCtx)

	c.state.Store(int32(Stopped))
	close(c.done)

	if err != nil {
		c.logger.Error("Drain did not complete", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return fmt.Errorf("drain: %w", err)
	}

	c.logger.Info("Drain complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}

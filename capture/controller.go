/*
DESCRIPTION
  controller.go provides Controller, which runs the capture loop: a still is
  captured and stored once every interval until the loop is cancelled, after
  which the camera is disabled.

AUTHORS
  stillcam contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package capture provides the periodic capture loop.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/stillcam/camera"
	"github.com/ausocean/utils/logging"
)

// To indicate package when logging.
const pkg = "capture: "

// DefaultInterval is the default period of the capture loop.
const DefaultInterval = 5 * time.Second

// Controller parameters.
const (
	disableTimeout = 30 * time.Second
	statsWindow    = 100 // Iterations kept for timing statistics.
)

// Camera is a camera session that the loop captures from.
type Camera interface {
	Enable(ctx context.Context) error
	Capture(ctx context.Context, dst *bytes.Buffer) (camera.Outcome, error)
	Disable(ctx context.Context) error
}

// Store persists captured images.
type Store interface {
	Store(ctx context.Context, src io.ReadSeeker) error
}

// Stats holds the counters of a Controller.
type Stats struct {
	Iterations int
	Successes  int // Images captured and stored.
	Failures   int // Iterations that did not store an image.

	// Mean and standard deviation of iteration duration, excluding the pacing
	// sleep, over the most recent iterations.
	MeanDuration   time.Duration
	StdDevDuration time.Duration
}

// Option is a functional option for a Controller.
type Option func(*Controller) error

// WithInterval sets the period of the loop.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) error {
		if d <= 0 {
			return fmt.Errorf("invalid interval: %v", d)
		}
		c.interval = d
		return nil
	}
}

// WithClock replaces the clock used to time iterations and to sleep between
// them.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(c *Controller) error {
		if now == nil || after == nil {
			return errors.New("nil clock function")
		}
		c.now, c.after = now, after
		return nil
	}
}

// WithHeartbeat registers f to be called at the end of every iteration.
func WithHeartbeat(f func()) Option {
	return func(c *Controller) error {
		c.heartbeat = f
		return nil
	}
}

// WithIntervalUpdates makes the loop take new intervals from ch. A new
// interval takes effect at the start of the next iteration.
func WithIntervalUpdates(ch <-chan time.Duration) Option {
	return func(c *Controller) error {
		c.updates = ch
		return nil
	}
}

// Controller runs the capture loop. A Controller's Run method must only be
// called once.
type Controller struct {
	cam       Camera
	store     Store
	log       logging.Logger
	interval  time.Duration
	now       func() time.Time
	after     func(time.Duration) <-chan time.Time
	heartbeat func()
	updates   <-chan time.Duration
	buf       bytes.Buffer // Frame buffer, reused each iteration.

	mu    sync.Mutex
	stats Stats
	durs  []float64 // Recent iteration durations in seconds.
}

// New returns a new Controller capturing from cam and storing to s.
func New(cam Camera, s Store, l logging.Logger, opts ...Option) (*Controller, error) {
	if cam == nil || s == nil {
		return nil, errors.New("camera and store must not be nil")
	}
	c := &Controller{
		cam:      cam,
		store:    s,
		log:      l,
		interval: DefaultInterval,
		now:      time.Now,
		after:    time.After,
	}
	for i, opt := range opts {
		err := opt(c)
		if err != nil {
			return nil, fmt.Errorf("could not apply option %d: %w", i, err)
		}
	}
	return c, nil
}

// Run enables the camera and then captures and stores an image every
// interval until ctx is cancelled. A capture or store in progress when ctx is
// cancelled is allowed to finish. The camera is disabled before Run returns.
// Cancellation is not an error; an error is returned only if the loop is
// terminated by a panic.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(pkg+"capture loop terminated unexpectedly", "panic", r)
			err = fmt.Errorf("capture loop panicked: %v", r)
		}
		dctx, cancel := context.WithTimeout(context.Background(), disableTimeout)
		defer cancel()
		derr := c.cam.Disable(dctx)
		if derr != nil {
			c.log.Error(pkg+"could not disable camera", "error", derr)
		}
		c.log.Info(pkg+"capture loop stopped", "stats", c.Stats())
	}()

	c.log.Info(pkg+"starting capture loop", "interval", c.interval)
	err = c.cam.Enable(ctx)
	if err != nil {
		c.log.Error(pkg+"could not enable camera, will retry", "error", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		c.applyUpdates()

		start := c.now()
		c.iterate(ctx)
		elapsed := c.now().Sub(start)
		c.record(elapsed)
		if c.heartbeat != nil {
			c.heartbeat()
		}

		if ctx.Err() != nil {
			c.log.Info(pkg+"capture loop cancelled")
			return nil
		}

		wait := c.interval - elapsed
		if wait <= 0 {
			c.log.Warning(pkg+"iteration overran interval", "elapsed", elapsed, "interval", c.interval)
			continue
		}
		select {
		case <-c.after(wait):
		case <-ctx.Done():
			c.log.Info(pkg+"capture loop cancelled")
			return nil
		}
	}
}

// iterate performs one capture and store. Capture and store are given a
// context that is not cancelled with ctx so that they run to completion.
func (c *Controller) iterate(ctx context.Context) {
	opCtx := context.WithoutCancel(ctx)

	c.buf.Reset()
	out, err := c.cam.Capture(opCtx, &c.buf)
	switch out {
	case camera.Captured:
		err = c.store.Store(opCtx, bytes.NewReader(c.buf.Bytes()))
		if err != nil {
			c.log.Warning(pkg+"could not store image", "error", err)
			c.count(false)
			return
		}
		c.log.Debug(pkg+"image stored", "bytes", c.buf.Len())
		c.count(true)

	case camera.Empty:
		c.log.Warning(pkg+"no image captured", "error", err)
		c.count(false)

	case camera.Unusable:
		c.log.Warning(pkg+"camera unusable, enabling", "error", err)
		c.count(false)
		err = c.cam.Enable(ctx)
		if err != nil {
			c.log.Error(pkg+"could not enable camera", "error", err)
		}

	default:
		c.log.Error(pkg+"unknown capture outcome", "outcome", out, "error", err)
		c.count(false)
	}
}

func (c *Controller) applyUpdates() {
	if c.updates == nil {
		return
	}
	for {
		select {
		case d, ok := <-c.updates:
			if !ok {
				c.updates = nil
				return
			}
			if d <= 0 {
				c.log.Warning(pkg+"ignoring invalid interval", "interval", d)
				continue
			}
			if d != c.interval {
				c.log.Info(pkg+"interval changed", "from", c.interval, "to", d)
				c.interval = d
			}
		default:
			return
		}
	}
}

func (c *Controller) count(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.stats.Successes++
	} else {
		c.stats.Failures++
	}
}

func (c *Controller) record(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Iterations++
	c.durs = append(c.durs, d.Seconds())
	if len(c.durs) > statsWindow {
		c.durs = c.durs[len(c.durs)-statsWindow:]
	}
	mean, std := stat.MeanStdDev(c.durs, nil)
	if len(c.durs) < 2 {
		std = 0
	}
	c.stats.MeanDuration = seconds(mean)
	c.stats.StdDevDuration = seconds(std)
}

// Stats returns a snapshot of the loop's counters. It is safe to call
// concurrently with Run.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

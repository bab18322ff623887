/*
DESCRIPTION
  session.go provides Session, which owns a camera's capture pipeline and
  keeps its exposure matched to the light in the scene. The pipeline is
  calibrated when the session is enabled and again after every streak of
  successful captures.

AUTHORS
  stillcam contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package camera provides a camera session that captures stills with an
// exposure chosen from the measured lightness of the scene.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ausocean/stillcam/device"
	"github.com/ausocean/stillcam/exposure"
	"github.com/ausocean/stillcam/lightness"
	"github.com/ausocean/utils/logging"
)

// To indicate package when logging.
const pkg = "camera: "

// Session defaults.
const (
	DefaultStreakLength = 12
	DefaultSettleDelay  = 2 * time.Second
)

// Brightness assumed when the calibration capture can't be metered.
const fallbackBrightness = 1.0

// Session errors.
var (
	ErrNotReady = errors.New("camera not ready")
	ErrUnusable = errors.New("camera unusable")
)

// State is the lifecycle state of a Session.
type State int

// Session states.
const (
	Disabled State = iota
	Enabling
	Calibrating
	Ready
	Capturing
	Disabling
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Enabling:
		return "enabling"
	case Calibrating:
		return "calibrating"
	case Ready:
		return "ready"
	case Capturing:
		return "capturing"
	case Disabling:
		return "disabling"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the result of a call to Capture.
type Outcome int

const (
	// Captured means an image was written to the destination buffer.
	Captured Outcome = iota

	// Empty means the capture produced no image. The session is still
	// usable and a later capture may succeed.
	Empty

	// Unusable means the session can't capture until it is enabled again.
	Unusable
)

func (o Outcome) String() string {
	switch o {
	case Captured:
		return "captured"
	case Empty:
		return "empty"
	case Unusable:
		return "unusable"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Option is a functional option for a Session.
type Option func(*Session) error

// WithSettings sets the base settings pipelines are built with. The exposure
// fields are overwritten by the preset chosen at calibration.
func WithSettings(s device.Settings) Option {
	return func(c *Session) error {
		c.base = s
		return nil
	}
}

// WithStreakLength sets the number of capture attempts between
// recalibrations.
func WithStreakLength(n int) Option {
	return func(c *Session) error {
		if n <= 0 {
			return fmt.Errorf("invalid streak length: %d", n)
		}
		c.streak = n
		return nil
	}
}

// WithSettleDelay sets how long a newly built pipeline is left before its
// first capture.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Session) error {
		if d < 0 {
			return fmt.Errorf("invalid settle delay: %v", d)
		}
		c.settle = d
		return nil
	}
}

// WithMeter sets the function used to measure the lightness of an encoded
// calibration image. The default is lightness.OfJPEG.
func WithMeter(m func([]byte) (float64, error)) Option {
	return func(c *Session) error {
		if m == nil {
			return errors.New("nil meter")
		}
		c.meter = m
		return nil
	}
}

// OnCalibrate registers f to be called after every calibration with the
// measured brightness and the preset the pipeline was rebuilt with.
func OnCalibrate(f func(brightness float64, p exposure.Preset)) Option {
	return func(c *Session) error {
		c.onCalibrate = f
		return nil
	}
}

// Session drives a device.Camera through its lifecycle. A Session is not safe
// for concurrent use; it is owned by a single capture loop.
type Session struct {
	cam         device.Camera
	log         logging.Logger
	base        device.Settings
	streak      int
	settle      time.Duration
	meter       func([]byte) (float64, error)
	onCalibrate func(float64, exposure.Preset)

	state        State
	pipe         device.Pipeline
	preset       exposure.Preset
	brightness   float64
	readyAt      time.Time
	shots        int
	calibrations int
	buf          bytes.Buffer // Internal capture buffer.
}

// New returns a new disabled Session for cam.
func New(cam device.Camera, l logging.Logger, opts ...Option) (*Session, error) {
	if cam == nil {
		return nil, errors.New("nil camera")
	}
	s := &Session{
		cam:    cam,
		log:    l,
		streak: DefaultStreakLength,
		settle: DefaultSettleDelay,
		meter:  lightness.OfJPEG,
	}
	for i, opt := range opts {
		err := opt(s)
		if err != nil {
			return nil, fmt.Errorf("could not apply option %d: %w", i, err)
		}
	}
	return s, nil
}

// State returns the current state of the session.
func (s *Session) State() State { return s.state }

// Preset returns the exposure preset of the current pipeline.
func (s *Session) Preset() exposure.Preset { return s.preset }

// Brightness returns the brightness measured at the last calibration.
func (s *Session) Brightness() float64 { return s.brightness }

// Calibrations returns the number of calibrations performed.
func (s *Session) Calibrations() int { return s.calibrations }

// Enable builds a pipeline and calibrates it to the scene, leaving the
// session ready to capture. Enabling a ready session does nothing. If
// calibration fails the session is left disabled and the returned error wraps
// ErrUnusable.
func (s *Session) Enable(ctx context.Context) error {
	switch s.state {
	case Ready:
		return nil
	case Disabled:
	default:
		return fmt.Errorf("%w: cannot enable from state %v", ErrUnusable, s.state)
	}

	s.state = Enabling
	s.log.Info(pkg+"enabling camera", "device", s.cam.Name())

	s.state = Calibrating
	err := s.calibrate(ctx)
	if err != nil {
		s.log.Error(pkg+"could not enable camera", "error", err)
		if rerr := s.release(); rerr != nil {
			s.log.Warning(pkg+"could not release pipeline", "error", rerr)
		}
		s.state = Disabled
		return fmt.Errorf("%w: %w", ErrUnusable, err)
	}

	s.state = Ready
	s.log.Info(pkg+"camera enabled", "preset", s.preset.Name())
	return nil
}

// Capture captures a single image into dst, which is reset first. The
// returned Outcome says whether dst holds an image. A returned error with an
// Empty outcome is transient. After every StreakLength capture attempts, a
// successful capture is followed by recalibration before Capture returns.
func (s *Session) Capture(ctx context.Context, dst *bytes.Buffer) (Outcome, error) {
	dst.Reset()
	if s.state != Ready {
		return Unusable, fmt.Errorf("%w: state is %v", ErrNotReady, s.state)
	}

	s.state = Capturing
	s.shots++
	s.log.Debug(pkg+"capturing image", "shot", s.shots)

	err := s.shoot(ctx, dst)
	if err != nil {
		dst.Reset()
		s.state = Ready
		s.log.Warning(pkg+"capture failed", "error", err)
		return Empty, fmt.Errorf("could not capture image: %w", err)
	}
	if dst.Len() == 0 {
		s.state = Ready
		s.log.Warning(pkg+"captured image is empty")
		return Empty, nil
	}

	if s.shots%s.streak == 0 {
		s.log.Info(pkg+"image streak complete, recalibrating", "shots", s.shots)
		s.state = Calibrating
		err = s.calibrate(ctx)
		if err != nil {
			s.log.Error(pkg+"could not recalibrate camera", "error", err)
			if s.pipe == nil {
				s.state = Disabled
				return Captured, nil
			}
		}
	}

	s.state = Ready
	return Captured, nil
}

// Disable releases the pipeline. It may be called from any state and is
// idempotent.
func (s *Session) Disable(ctx context.Context) error {
	if s.state == Disabled && s.pipe == nil {
		return nil
	}
	s.state = Disabling
	err := s.release()
	s.state = Disabled
	if err != nil {
		s.log.Error(pkg+"could not release pipeline", "error", err)
		return fmt.Errorf("could not release pipeline: %w", err)
	}
	s.log.Info(pkg+"camera disabled")
	return nil
}

// calibrate measures the scene with an auto exposed capture and rebuilds the
// pipeline with the matching preset. The shot counter starts again from zero.
func (s *Session) calibrate(ctx context.Context) error {
	s.shots = 0
	err := s.build(ctx, exposure.Normal)
	if err != nil {
		return err
	}

	var scratch bytes.Buffer
	err = s.shoot(ctx, &scratch)
	if err != nil {
		s.log.Warning(pkg+"calibration capture failed", "error", err)
	}

	b := fallbackBrightness
	if scratch.Len() == 0 {
		s.log.Warning(pkg+"calibration image is empty, assuming bright scene")
	} else if b, err = s.meter(scratch.Bytes()); err != nil {
		s.log.Warning(pkg+"could not measure calibration image, assuming bright scene", "error", err)
		b = fallbackBrightness
	}

	p := exposure.For(b)
	s.log.Info(pkg+"measured light level", "brightness", b, "preset", p.Name())
	s.brightness = b
	err = s.build(ctx, p)
	if err != nil {
		return err
	}
	s.calibrations++
	if s.onCalibrate != nil {
		s.onCalibrate(b, p)
	}
	return nil
}

// build disposes of any current pipeline, builds a new one with preset p and
// waits for it to settle.
func (s *Session) build(ctx context.Context, p exposure.Preset) error {
	err := s.release()
	if err != nil {
		s.log.Warning(pkg+"could not release pipeline", "error", err)
	}

	settings := s.base
	settings.Shutter = p.Shutter
	settings.ISO = p.ISO
	pipe, err := s.cam.Build(ctx, settings)
	if err != nil {
		return fmt.Errorf("could not build pipeline: %w", err)
	}
	s.pipe = pipe
	s.preset = p
	s.readyAt = time.Now().Add(s.settle)
	s.log.Debug(pkg+"pipeline built", "preset", p)
	return s.waitSettled(ctx)
}

// waitSettled blocks until the current pipeline's settle deadline.
func (s *Session) waitSettled(ctx context.Context) error {
	d := time.Until(s.readyAt)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shoot runs the pipeline once into the internal buffer and copies the result
// into dst.
func (s *Session) shoot(ctx context.Context, dst io.Writer) error {
	if s.pipe == nil {
		return ErrNotReady
	}
	err := s.waitSettled(ctx)
	if err != nil {
		return err
	}
	s.buf.Reset()
	err = s.pipe.Capture(ctx, &s.buf)
	if err != nil {
		return err
	}
	_, err = s.buf.WriteTo(dst)
	return err
}

func (s *Session) release() error {
	if s.pipe == nil {
		return nil
	}
	err := s.pipe.Close()
	s.pipe = nil
	return err
}

/*
DESCRIPTION
  device.go provides Camera and Pipeline, interfaces that describe a still
  camera whose capture pipeline can be built for a set of exposure settings,
  run once per still, and torn down.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package device provides interfaces and implementations for still cameras
// from which single encoded images can be captured.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Settings holds the parameters a capture pipeline is built with. A zero
// Shutter or ISO means the camera chooses these automatically.
type Settings struct {
	Shutter          time.Duration
	ISO              uint
	Width            uint // Width of the resized output image in pixels.
	Height           uint // Height of the resized output image in pixels.
	Rotation         uint // Degrees.
	JPEGQuality      int  // 0-100.
	AutoWhiteBalance string
}

// Camera describes a still camera. Each call to Build produces a new, fully
// connected pipeline; the caller owns the returned Pipeline and must Close it
// before building another.
type Camera interface {
	// Name returns the name of the Camera.
	Name() string

	// Build configures the camera with s and connects the capture graph,
	// returning a Pipeline that is ready to capture. An implementation should
	// specify which fields of s are considered.
	Build(ctx context.Context, s Settings) (Pipeline, error)
}

// Pipeline is a built capture pipeline.
type Pipeline interface {
	// Capture runs the pipeline once, writing one encoded image to dst.
	// A Capture that produces no data is not an error; callers should check
	// how many bytes were written.
	Capture(ctx context.Context, dst io.Writer) error

	// Close disposes of the pipeline's components. A closed Pipeline must not
	// be used again.
	Close() error
}

// ErrClosed is returned when capturing from a closed pipeline.
var ErrClosed = errors.New("pipeline closed")

// MultiError implements the built in error interface. MultiError is used here
// to collect multiple errors during validation of settings and disposal of
// pipeline components.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("device: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}

/*
DESCRIPTION
  raspistill.go provides an implementation of the Camera interface for the
  raspistill raspberry pi camera interfacing utility, and its libcamera based
  successors. Each capture runs the utility once with the flags of the built
  pipeline and reads the JPEG it writes to stdout.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package raspistill provides an implementation of the Camera interface for
// the raspistill raspberry pi camera interfacing utility. This allows for the
// capture of single stills with chosen exposure settings.
package raspistill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/ausocean/stillcam/device"
	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/sliceutils"
)

// To indicate package when logging.
const pkg = "raspistill: "

// Supported camera utilities.
const (
	CmdRaspistill = "raspistill"
	CmdLibcamera  = "libcamera-still"
	CmdRpicam     = "rpicam-still"
)

// Settings validation bounds.
const (
	maxShutter  = 10 * time.Second
	minISO      = 100
	maxISO      = 800
	maxRotation = 359
)

// Raspistill configuration defaults.
const (
	defaultRotation    = 0    // degrees
	defaultWidth       = 1024 // pixels
	defaultHeight      = 768  // pixels
	defaultJPEGQuality = 90   // %
	defaultTimeout     = time.Second
	captureGrace       = 10 * time.Second
)

// Default white balance per utility.
var defaultAWB = map[string]string{
	CmdRaspistill: "greyworld",
	CmdLibcamera:  "auto",
	CmdRpicam:     "auto",
}

// Possible modes for the --awb parameter per utility.
var awbModes = map[string][]string{
	CmdRaspistill: {"off", "auto", "sun", "cloud", "shade", "tungsten", "fluorescent", "incandescent", "flash", "horizon", "greyworld"},
	CmdLibcamera:  {"auto", "incandescent", "tungsten", "fluorescent", "indoor", "daylight", "cloudy", "custom"},
	CmdRpicam:     {"auto", "incandescent", "tungsten", "fluorescent", "indoor", "daylight", "cloudy", "custom"},
}

// Settings errors.
var (
	errBadRotation    = fmt.Errorf("Rotation bad or unset, defaulting to: %v", defaultRotation)
	errBadWidth       = fmt.Errorf("Width bad or unset, defaulting to: %v", defaultWidth)
	errBadHeight      = fmt.Errorf("Height bad or unset, defaulting to: %v", defaultHeight)
	errBadJPEGQuality = fmt.Errorf("JPEGQuality bad or unset, defaulting to: %v", defaultJPEGQuality)
	errBadAWB         = errors.New("AutoWhiteBalance bad or unset, defaulting")
	errBadShutter     = errors.New("Shutter out of range, defaulting to auto")
	errBadISO         = errors.New("ISO out of range, defaulting to auto")
)

// Runner runs the named utility with args, connecting its standard output
// and error to stdout and stderr, and waits for it to exit.
type Runner func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error

// execRunner is the Runner used unless another is given.
func execRunner(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Option configures a Raspistill.
type Option func(*Raspistill) error

// WithCommand selects the camera utility to run; one of CmdRaspistill,
// CmdLibcamera or CmdRpicam.
func WithCommand(name string) Option {
	return func(r *Raspistill) error {
		if _, ok := awbModes[name]; !ok {
			return fmt.Errorf("unsupported camera utility: %s", name)
		}
		r.cmd = name
		return nil
	}
}

// WithRunner sets the function used to run the camera utility.
func WithRunner(run Runner) Option {
	return func(r *Raspistill) error {
		if run == nil {
			return errors.New("nil runner")
		}
		r.run = run
		return nil
	}
}

// WithTimeout sets how long the utility previews before taking the still,
// giving its own metering time to converge.
func WithTimeout(d time.Duration) Option {
	return func(r *Raspistill) error {
		if d <= 0 {
			return fmt.Errorf("invalid timeout: %v", d)
		}
		r.timeout = d
		return nil
	}
}

// Raspistill is an implementation of device.Camera that provides control
// over the raspistill utility for using the raspberry pi camera for the
// capture of singular images.
type Raspistill struct {
	cmd     string
	run     Runner
	timeout time.Duration
	log     logging.Logger
}

// New returns a new Raspistill.
func New(l logging.Logger, opts ...Option) (*Raspistill, error) {
	r := &Raspistill{
		cmd:     CmdRaspistill,
		run:     execRunner,
		timeout: defaultTimeout,
		log:     l,
	}
	for i, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("could not apply option %d: %w", i, err)
		}
	}
	return r, nil
}

// Name returns the name of the device.
func (r *Raspistill) Name() string { return "Raspistill" }

// Build checks the validity of s, defaulting bad fields, and connects the
// capture graph from the resulting settings. Invalid settings are logged but
// do not stop the build.
func (r *Raspistill) Build(ctx context.Context, s device.Settings) (device.Pipeline, error) {
	s, err := r.validate(s)
	if err != nil {
		r.log.Warning(pkg+"settings bad or unset, defaulting", "error", err.Error())
	}

	g := &device.Graph{}
	var (
		sensor   = device.Stage{ID: device.Sensor, Flags: r.sensorArgs(s)}
		resizer  = device.Stage{ID: device.Resizer, Flags: resizerArgs(s)}
		encoder  = device.Stage{ID: device.Encoder, Flags: encoderArgs(s)}
		preview  = device.Stage{ID: device.Preview}
		nullSink = device.Stage{ID: device.NullSink, Flags: []string{"--nopreview"}}
	)
	for _, l := range [][2]device.Component{
		{sensor, resizer},
		{resizer, encoder},
		{preview, nullSink},
	} {
		if err := g.Connect(l[0], l[1]); err != nil {
			g.Close()
			return nil, fmt.Errorf("could not connect %s to %s: %w", l[0].Name(), l[1].Name(), err)
		}
	}

	r.log.Debug(pkg+"pipeline built", "command", r.cmd, "shutter", s.Shutter, "iso", s.ISO, "links", g.Links())
	return &pipeline{
		r:     r,
		graph: g,
		args:  g.Args(),
		limit: r.timeout + 2*s.Shutter + captureGrace,
	}, nil
}

// validate checks the relevant fields of s, replacing bad values with
// defaults. If fields are not valid, an error is added to the MultiError.
func (r *Raspistill) validate(s device.Settings) (device.Settings, error) {
	var errs device.MultiError

	if s.Rotation > maxRotation || (r.cmd != CmdRaspistill && s.Rotation != 0 && s.Rotation != 180) {
		s.Rotation = defaultRotation
		errs = append(errs, errBadRotation)
	}

	if s.Width == 0 {
		s.Width = defaultWidth
		errs = append(errs, errBadWidth)
	}

	if s.Height == 0 {
		s.Height = defaultHeight
		errs = append(errs, errBadHeight)
	}

	if s.JPEGQuality <= 0 || s.JPEGQuality > 100 {
		s.JPEGQuality = defaultJPEGQuality
		errs = append(errs, errBadJPEGQuality)
	}

	if s.AutoWhiteBalance == "" || !sliceutils.ContainsString(awbModes[r.cmd], s.AutoWhiteBalance) {
		s.AutoWhiteBalance = defaultAWB[r.cmd]
		errs = append(errs, errBadAWB)
	}

	if s.Shutter < 0 || s.Shutter > maxShutter {
		s.Shutter = 0
		errs = append(errs, errBadShutter)
	}

	if s.ISO != 0 && (s.ISO < minISO || s.ISO > maxISO) {
		s.ISO = 0
		errs = append(errs, errBadISO)
	}

	if len(errs) != 0 {
		return s, errs
	}
	return s, nil
}

func (r *Raspistill) sensorArgs(s device.Settings) []string {
	args := []string{
		"--timeout", fmt.Sprint(r.timeout.Milliseconds()),
		"--rotation", fmt.Sprint(s.Rotation),
		"--awb", s.AutoWhiteBalance,
	}
	if s.Shutter != 0 {
		args = append(args, "--shutter", fmt.Sprint(s.Shutter.Microseconds()))
	}
	if s.ISO != 0 {
		if r.cmd == CmdRaspistill {
			args = append(args, "--ISO", fmt.Sprint(s.ISO))
		} else {
			// libcamera expresses sensitivity as analogue gain where ISO 100 ~ 1.
			args = append(args, "--gain", strconv.FormatFloat(float64(s.ISO)/100, 'g', -1, 64))
		}
	}
	return args
}

func resizerArgs(s device.Settings) []string {
	return []string{
		"--width", fmt.Sprint(s.Width),
		"--height", fmt.Sprint(s.Height),
	}
}

func encoderArgs(s device.Settings) []string {
	return []string{
		"--encoding", "jpg",
		"--quality", fmt.Sprint(s.JPEGQuality),
		"--output", "-",
	}
}

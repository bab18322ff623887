/*
NAME
  config.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for stillcam.
package config

import (
	"errors"
	"time"

	"github.com/ausocean/utils/logging"
)

// Enums to define inputs.
const (
	// Indicates no option has been set.
	NothingDefined = iota

	InputRaspistill
	InputFile
)

// Config provides parameters used by the capture loop and its camera and
// storage. Only the Interval and logging level take effect without a
// restart.
type Config struct {
	// Logger holds an implementation of the Logger interface as defined in
	// the logging package. This must be set for the config to log.
	Logger logging.Logger

	// LogLevel is the verbosity of the logger. Valid values are defined by
	// enums from the logging package: logging.Debug, logging.Info,
	// logging.Warning, logging.Error and logging.Fatal.
	LogLevel int8

	// Input defines the still source.
	//
	// Valid inputs are defined by enums:
	// InputRaspistill:
	//		Stills are captured with the camera utility named by Command.
	// InputFile:
	//		Stills are read from InputPath, either a file of concatenated JPEGs
	//		or a directory of JPEG files.
	Input uint8

	InputPath string // InputPath defines the input file or directory location for File input.
	Command   string // Command is the camera utility used for Raspistill input.

	// OutputPath is the directory the primary and secondary images and the
	// status record are written to.
	OutputPath string
	ImageExt   string // ImageExt is the extension of stored images, without the dot.

	// Interval is the period of the capture loop. An iteration that takes
	// longer than Interval is followed immediately by the next.
	Interval time.Duration

	// StreakLength is the number of capture attempts between recalibrations
	// of exposure.
	StreakLength uint

	SettleDelay    time.Duration // SettleDelay is how long a rebuilt pipeline is left before capturing.
	CaptureTimeout time.Duration // CaptureTimeout is the camera utility's preview time before each still.

	Width    uint // Width defines the output image width.
	Height   uint // Height defines the output image height.
	Rotation uint // Rotation defines the image rotation angle in degrees.

	// JPEGQuality is a value 0-100 inclusive, controlling JPEG compression of
	// the stills. 100 represents minimal compression and 0 represents the most
	// compression.
	JPEGQuality int

	// AutoWhiteBalance is the white balance mode of the camera. Valid modes
	// depend on Command.
	AutoWhiteBalance string
}

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined. An error is returned only
// for problems that can't be defaulted.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	if c.Input == InputFile && c.InputPath == "" {
		return errors.New("file input requires an InputPath")
	}
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}

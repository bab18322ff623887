/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and finally, a validation function to check the validity of the
  corresponding field value in the Config.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/sliceutils"
)

// Config map Keys.
const (
	KeyAutoWhiteBalance = "AutoWhiteBalance"
	KeyCaptureTimeout   = "CaptureTimeout"
	KeyCommand          = "Command"
	KeyHeight           = "Height"
	KeyImageExt         = "ImageExt"
	KeyInput            = "Input"
	KeyInputPath        = "InputPath"
	KeyInterval         = "Interval"
	KeyJPEGQuality      = "JPEGQuality"
	KeyLogging          = "logging"
	KeyOutputPath       = "OutputPath"
	KeyRotation         = "Rotation"
	KeySettleDelay      = "SettleDelay"
	KeyStreakLength     = "StreakLength"
	KeyWidth            = "Width"
)

// Config map parameter types.
const (
	typeString   = "string"
	typeInt      = "int"
	typeUint     = "uint"
	typeDuration = "duration"
)

// Default variable values.
const (
	defaultInput          = InputRaspistill
	defaultAWB            = "greyworld"
	defaultCommand        = "raspistill"
	defaultOutputPath     = "/var/lib/stillcam"
	defaultImageExt       = "jpg"
	defaultInterval       = 5 * time.Second
	defaultStreakLength   = 12
	defaultSettleDelay    = 2 * time.Second
	defaultCaptureTimeout = 1 * time.Second
	defaultWidth          = 1024
	defaultHeight         = 768
	defaultRotation       = 0
	defaultJPEGQuality    = 90
	defaultVerbosity      = logging.Info
)

// Commands are the camera utilities that may be used for Raspistill input.
var Commands = []string{"raspistill", "libcamera-still", "rpicam-still"}

// Variables describes the variables that can be used for stillcam control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyAutoWhiteBalance,
		Type:   "enum:off,auto,sun,cloud,shade,tungsten,fluorescent,incandescent,flash,horizon,greyworld",
		Update: func(c *Config, v string) { c.AutoWhiteBalance = strings.ToLower(v) },
		Validate: func(c *Config) {
			if c.AutoWhiteBalance != "" {
				return
			}
			def := defaultAWB
			if c.Command != "" && c.Command != defaultCommand {
				def = "auto"
			}
			c.LogInvalidField(KeyAutoWhiteBalance, def)
			c.AutoWhiteBalance = def
		},
	},
	{
		Name:   KeyCaptureTimeout,
		Type:   typeDuration,
		Update: func(c *Config, v string) { c.CaptureTimeout = parseDuration(KeyCaptureTimeout, v, c) },
		Validate: func(c *Config) {
			if c.CaptureTimeout <= 0 {
				c.LogInvalidField(KeyCaptureTimeout, defaultCaptureTimeout)
				c.CaptureTimeout = defaultCaptureTimeout
			}
		},
	},
	{
		Name:   KeyCommand,
		Type:   "enum:" + strings.Join(Commands, ","),
		Update: func(c *Config, v string) { c.Command = v },
		Validate: func(c *Config) {
			if !sliceutils.ContainsString(Commands, c.Command) {
				c.LogInvalidField(KeyCommand, defaultCommand)
				c.Command = defaultCommand
			}
		},
	},
	{
		Name:   KeyHeight,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Height = parseUint(KeyHeight, v, c) },
		Validate: func(c *Config) {
			c.Height = lessThanOrEqual(KeyHeight, c.Height, 0, c, defaultHeight)
		},
	},
	{
		Name:   KeyImageExt,
		Type:   typeString,
		Update: func(c *Config, v string) { c.ImageExt = strings.TrimPrefix(v, ".") },
		Validate: func(c *Config) {
			if c.ImageExt == "" {
				c.LogInvalidField(KeyImageExt, defaultImageExt)
				c.ImageExt = defaultImageExt
			}
		},
	},
	{
		Name: KeyInput,
		Type: "enum:raspistill,file",
		Update: func(c *Config, v string) {
			c.Input = parseEnum(
				KeyInput,
				v,
				map[string]uint8{
					"raspistill": InputRaspistill,
					"file":       InputFile,
				},
				c,
			)
		},
		Validate: func(c *Config) {
			switch c.Input {
			case InputRaspistill, InputFile:
			default:
				c.LogInvalidField(KeyInput, defaultInput)
				c.Input = defaultInput
			}
		},
	},
	{
		Name:   KeyInputPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.InputPath = v },
	},
	{
		Name:   KeyInterval,
		Type:   typeDuration,
		Update: func(c *Config, v string) { c.Interval = parseDuration(KeyInterval, v, c) },
		Validate: func(c *Config) {
			if c.Interval <= 0 {
				c.LogInvalidField(KeyInterval, defaultInterval)
				c.Interval = defaultInterval
			}
		},
	},
	{
		Name:   KeyJPEGQuality,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.JPEGQuality = parseInt(KeyJPEGQuality, v, c) },
		Validate: func(c *Config) {
			if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
				c.LogInvalidField(KeyJPEGQuality, defaultJPEGQuality)
				c.JPEGQuality = defaultJPEGQuality
			}
		},
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyOutputPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.OutputPath = v },
		Validate: func(c *Config) {
			if c.OutputPath == "" {
				c.LogInvalidField(KeyOutputPath, defaultOutputPath)
				c.OutputPath = defaultOutputPath
			}
		},
	},
	{
		Name:   KeyRotation,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Rotation = parseUint(KeyRotation, v, c) },
		Validate: func(c *Config) {
			if c.Rotation > 359 {
				c.LogInvalidField(KeyRotation, defaultRotation)
				c.Rotation = defaultRotation
			}
		},
	},
	{
		Name:   KeySettleDelay,
		Type:   typeDuration,
		Update: func(c *Config, v string) { c.SettleDelay = parseDuration(KeySettleDelay, v, c) },
		Validate: func(c *Config) {
			if c.SettleDelay <= 0 {
				c.LogInvalidField(KeySettleDelay, defaultSettleDelay)
				c.SettleDelay = defaultSettleDelay
			}
		},
	},
	{
		Name:   KeyStreakLength,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.StreakLength = parseUint(KeyStreakLength, v, c) },
		Validate: func(c *Config) {
			c.StreakLength = lessThanOrEqual(KeyStreakLength, c.StreakLength, 0, c, defaultStreakLength)
		},
	},
	{
		Name:   KeyWidth,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Width = parseUint(KeyWidth, v, c) },
		Validate: func(c *Config) {
			c.Width = lessThanOrEqual(KeyWidth, c.Width, 0, c, defaultWidth)
		},
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseInt(n, v string, c *Config) int {
	_v, err := strconv.Atoi(v)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected integer for param %s", n), "value", v)
	}
	return _v
}

// parseDuration parses v as a whole number of seconds or, failing that, as a
// Go duration string such as "1500ms".
func parseDuration(n, v string, c *Config) time.Duration {
	if s, err := strconv.Atoi(v); err == nil {
		return time.Duration(s) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected duration for param %s", n), "value", v)
	}
	return d
}

func parseEnum(n, v string, enums map[string]uint8, c *Config) uint8 {
	_v, ok := enums[strings.ToLower(v)]
	if !ok {
		c.Logger.Warning(fmt.Sprintf("invalid value for %s param", n), "value", v)
	}
	return _v
}

func lessThanOrEqual(n string, v, cmp uint, c *Config, def uint) uint {
	if v <= cmp {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}

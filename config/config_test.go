/*
DESCRIPTION
  config_test.go provides testing for the Config struct methods (Validate and
  Update) and for loading and watching config files.

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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

func TestValidate(t *testing.T) {
	dl := &dumbLogger{}

	want := Config{
		Logger:           dl,
		AutoWhiteBalance: defaultAWB,
		Input:            defaultInput,
		Command:          defaultCommand,
		OutputPath:       defaultOutputPath,
		ImageExt:         defaultImageExt,
		Interval:         defaultInterval,
		StreakLength:     defaultStreakLength,
		SettleDelay:      defaultSettleDelay,
		CaptureTimeout:   defaultCaptureTimeout,
		Width:            defaultWidth,
		Height:           defaultHeight,
		JPEGQuality:      defaultJPEGQuality,
	}

	got := Config{Logger: dl}
	err := (&got).Validate()
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	if !cmp.Equal(got, want) {
		t.Errorf("configs not equal\nwant: %v\ngot: %v", want, got)
	}
}

func TestValidateBad(t *testing.T) {
	dl := &dumbLogger{}
	got := Config{
		Logger:      dl,
		Input:       42,
		Command:     "raspivid",
		Rotation:    360,
		JPEGQuality: 101,
		LogLevel:    100,
	}
	err := (&got).Validate()
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	if got.Input != defaultInput {
		t.Errorf("unexpected input\nwant: %v\ngot: %v", defaultInput, got.Input)
	}
	if got.Command != defaultCommand {
		t.Errorf("unexpected command\nwant: %v\ngot: %v", defaultCommand, got.Command)
	}
	if got.Rotation != defaultRotation {
		t.Errorf("unexpected rotation\nwant: %v\ngot: %v", defaultRotation, got.Rotation)
	}
	if got.JPEGQuality != defaultJPEGQuality {
		t.Errorf("unexpected JPEG quality\nwant: %v\ngot: %v", defaultJPEGQuality, got.JPEGQuality)
	}
	if got.LogLevel != defaultVerbosity {
		t.Errorf("unexpected log level\nwant: %v\ngot: %v", defaultVerbosity, got.LogLevel)
	}
}

func TestValidateFileInput(t *testing.T) {
	c := Config{Logger: &dumbLogger{}, Input: InputFile}
	err := c.Validate()
	if err == nil {
		t.Error("expected error for file input without path")
	}

	c.InputPath = "testdata/frames.mjpeg"
	err = c.Validate()
	if err != nil {
		t.Errorf("did not expect error: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	updateMap := map[string]string{
		"AutoWhiteBalance": "GreyWorld",
		"CaptureTimeout":   "500ms",
		"Command":          "libcamera-still",
		"Height":           "480",
		"ImageExt":         ".jpeg",
		"Input":            "File",
		"InputPath":        "/home/pi/frames",
		"Interval":         "10",
		"JPEGQuality":      "75",
		"logging":          "Debug",
		"OutputPath":       "/tmp/stills",
		"Rotation":         "180",
		"SettleDelay":      "1.5s",
		"StreakLength":     "6",
		"Width":            "640",
	}

	dl := &dumbLogger{}

	want := Config{
		Logger:           dl,
		AutoWhiteBalance: "greyworld",
		CaptureTimeout:   500 * time.Millisecond,
		Command:          "libcamera-still",
		Height:           480,
		ImageExt:         "jpeg",
		Input:            InputFile,
		InputPath:        "/home/pi/frames",
		Interval:         10 * time.Second,
		JPEGQuality:      75,
		LogLevel:         logging.Debug,
		OutputPath:       "/tmp/stills",
		Rotation:         180,
		SettleDelay:      1500 * time.Millisecond,
		StreakLength:     6,
		Width:            640,
	}

	got := Config{Logger: dl}
	got.Update(updateMap)
	if !cmp.Equal(want, got) {
		t.Errorf("configs not equal\nwant: %v\ngot: %v", want, got)
	}
}

func TestLoad(t *testing.T) {
	const file = `
Input: file
InputPath: /home/pi/frames
Interval: 5
SettleDelay: 2s
Rotation: 0
JPEGQuality: 90
logging: Warning
`
	path := filepath.Join(t.TempDir(), "stillcam.yaml")
	err := os.WriteFile(path, []byte(file), 0o644)
	if err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	want := map[string]string{
		"Input":       "file",
		"InputPath":   "/home/pi/frames",
		"Interval":    "5",
		"SettleDelay": "2s",
		"Rotation":    "0",
		"JPEGQuality": "90",
		"logging":     "Warning",
	}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected variables\nwant: %v\ngot: %v", want, got)
	}

	c := Config{Logger: &dumbLogger{}, Rotation: 180}
	c.Update(got)
	if c.Rotation != 0 || c.Interval != 5*time.Second || c.LogLevel != logging.Warning {
		t.Errorf("unexpected config after update: %+v", c)
	}
}

func TestLoadBad(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{name: "not yaml", file: "Input: [file"},
		{name: "list", file: "Input: [file, raspistill]"},
		{name: "mapping", file: "Input:\n  kind: file"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := parse([]byte(test.file))
			if err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stillcam.yaml")
	err := os.WriteFile(path, []byte("Interval: 5\n"), 0o644)
	if err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := Watch(ctx, path, &dumbLogger{})
	if err != nil {
		t.Fatalf("could not watch config: %v", err)
	}

	// Unrelated files in the directory are ignored.
	err = os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("Interval: 1\n"), 0o644)
	if err != nil {
		t.Fatalf("could not write other file: %v", err)
	}
	err = os.WriteFile(path, []byte("Interval: 10\n"), 0o644)
	if err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	// A write may be seen as more than one event, so wait for the contents
	// we expect.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case vars := <-ch:
			if vars[KeyInterval] == "1" {
				t.Fatal("received variables of unrelated file")
			}
			if vars[KeyInterval] == "10" {
				cancel()
				for range ch {
				}
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for config change")
		}
	}
}

/*
DESCRIPTION
  file.go provides an implementation of the Camera interface that serves
  stills from a file of concatenated JPEGs (MJPEG) or from a directory of JPEG
  files, for running without camera hardware.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package file provides an implementation of Camera for media files.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ausocean/stillcam/codec/jpeg"
	"github.com/ausocean/stillcam/device"
	"github.com/ausocean/utils/logging"
)

// To indicate package when logging.
const pkg = "file: "

// JPEG file extensions recognised in directory mode.
var exts = []string{".jpg", ".jpeg"}

// Camera is an implementation of device.Camera that provides stills from a
// file or directory. Frames are served in order and loop once exhausted. The
// position in the sequence is kept across pipeline rebuilds.
type Camera struct {
	path   string
	log    logging.Logger
	mu     sync.Mutex
	frames [][]byte
	next   int
}

// New returns a new Camera reading from path. If path is a directory, every
// .jpg or .jpeg file in it, in lexical order, is a frame; an empty file is an
// empty capture. Otherwise path is lexed as concatenated JPEG images.
func New(l logging.Logger, path string) *Camera { return &Camera{path: path, log: l} }

// Name returns the name of the device.
func (c *Camera) Name() string { return "File" }

// Build loads the frames if they have not been loaded and returns a pipeline
// serving them. Settings are ignored.
func (c *Camera) Build(ctx context.Context, s device.Settings) (device.Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frames == nil {
		frames, err := load(c.path)
		if err != nil {
			return nil, err
		}
		if len(frames) == 0 {
			return nil, fmt.Errorf("no frames in %s", c.path)
		}
		c.frames = frames
		c.log.Info(pkg+"loaded frames", "path", c.path, "frames", len(frames))
	}
	c.log.Debug(pkg+"ignoring settings for file input", "shutter", s.Shutter, "iso", s.ISO)
	return &pipeline{cam: c}, nil
}

func load(path string) ([][]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not stat media path: %w", err)
	}

	if !fi.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("could not open media file: %w", err)
		}
		defer f.Close()
		frames, err := jpeg.Frames(f)
		if err != nil {
			return nil, fmt.Errorf("could not lex media file: %w", err)
		}
		return frames, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("could not read media directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isJPEG(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	frames := make([][]byte, 0, len(names))
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(path, n))
		if err != nil {
			return nil, fmt.Errorf("could not read frame file: %w", err)
		}
		frames = append(frames, b)
	}
	return frames, nil
}

func isJPEG(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func (c *Camera) frame() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.frames[c.next%len(c.frames)]
	c.next++
	return f
}

// pipeline serves frames from a Camera until closed.
type pipeline struct {
	cam    *Camera
	closed bool
}

// Capture writes the next frame to dst.
func (p *pipeline) Capture(ctx context.Context, dst io.Writer) error {
	if p.closed {
		return device.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f := p.cam.frame()
	if len(f) == 0 {
		p.cam.log.Warning(pkg + "serving empty frame")
		return nil
	}
	_, err := dst.Write(f)
	return err
}

// Close marks the pipeline closed so that further captures fail. Closing a
// closed pipeline does nothing.
func (p *pipeline) Close() error {
	p.closed = true
	return nil
}

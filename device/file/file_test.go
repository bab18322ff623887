/*
DESCRIPTION
  file_test.go tests the file Camera.

AUTHORS
  Scott Barnard <scott@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ausocean/stillcam/device"
	"github.com/ausocean/utils/logging"
)

var (
	frameA = []byte{0xff, 0xd8, 'a', 0xff, 0xd9}
	frameB = []byte{0xff, 0xd8, 'b', 'b', 0xff, 0xd9}
)

func capture(t *testing.T, p device.Pipeline) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := p.Capture(context.Background(), &buf)
	if err != nil {
		t.Fatalf("did not expect capture error: %v", err)
	}
	return buf.Bytes()
}

func TestMJPEGFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.mjpeg")
	err := os.WriteFile(path, append(append([]byte{}, frameA...), frameB...), 0o644)
	if err != nil {
		t.Fatalf("could not write test file: %v", err)
	}

	c := New((*logging.TestLogger)(t), path)
	p, err := c.Build(context.Background(), device.Settings{})
	if err != nil {
		t.Fatalf("did not expect build error: %v", err)
	}

	want := [][]byte{frameA, frameB, frameA}
	for i, w := range want {
		if got := capture(t, p); !bytes.Equal(got, w) {
			t.Errorf("unexpected frame %d, want: %v, got: %v", i, w, got)
		}
	}

	for i := 0; i < 2; i++ {
		if err := p.Close(); err != nil {
			t.Fatalf("did not expect error from close %d: %v", i, err)
		}
	}
	var buf bytes.Buffer
	if err := p.Capture(context.Background(), &buf); !errors.Is(err, device.ErrClosed) {
		t.Errorf("expected ErrClosed after close, got: %v", err)
	}

	// Position carries over to a rebuilt pipeline.
	p, err = c.Build(context.Background(), device.Settings{ISO: 800})
	if err != nil {
		t.Fatalf("did not expect build error: %v", err)
	}
	if got := capture(t, p); !bytes.Equal(got, frameB) {
		t.Errorf("rebuilt pipeline did not continue sequence, got: %v", got)
	}
}

func TestMJPEGTrailingData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.mjpeg")
	in := append(append(append([]byte{}, frameA...), frameB...), '\n')
	err := os.WriteFile(path, in, 0o644)
	if err != nil {
		t.Fatalf("could not write test file: %v", err)
	}

	p, err := New((*logging.TestLogger)(t), path).Build(context.Background(), device.Settings{})
	if err != nil {
		t.Fatalf("did not expect build error: %v", err)
	}
	want := [][]byte{frameA, frameB, frameA}
	for i, w := range want {
		if got := capture(t, p); !bytes.Equal(got, w) {
			t.Errorf("unexpected frame %d, want: %v, got: %v", i, w, got)
		}
	}
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"0.jpg":     frameA,
		"1.JPEG":    nil, // Empty capture.
		"2.jpg":     frameB,
		"notes.txt": []byte("ignored"),
	}
	for n, b := range files {
		if err := os.WriteFile(filepath.Join(dir, n), b, 0o644); err != nil {
			t.Fatalf("could not write test file: %v", err)
		}
	}

	c := New((*logging.TestLogger)(t), dir)
	p, err := c.Build(context.Background(), device.Settings{})
	if err != nil {
		t.Fatalf("did not expect build error: %v", err)
	}

	want := [][]byte{frameA, nil, frameB, frameA}
	for i, w := range want {
		if got := capture(t, p); !bytes.Equal(got, w) {
			t.Errorf("unexpected frame %d, want: %v, got: %v", i, w, got)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	l := (*logging.TestLogger)(t)
	if _, err := New(l, filepath.Join(t.TempDir(), "missing")).Build(context.Background(), device.Settings{}); err == nil {
		t.Error("expected error for missing path")
	}
	if _, err := New(l, t.TempDir()).Build(context.Background(), device.Settings{}); err == nil {
		t.Error("expected error for directory with no frames")
	}
}

/*
DESCRIPTION
  dir.go provides Dir, a Bucket that stores objects as files in a local
  directory.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/ausocean/utils/logging"
)

// DefaultSpaceBuffer is the free disk space below which Dir refuses to write.
const DefaultSpaceBuffer = 50000000 // 50MB.

// ErrNoSpace is returned when a write would leave too little free disk space.
var ErrNoSpace = errors.New("not enough disk space")

// Dir is a Bucket backed by a local directory. Objects are written to a
// temporary file which is synced and then renamed over the destination, so a
// reader never sees a partially written object.
type Dir struct {
	path        string
	log         logging.Logger
	spaceBuffer uint64
}

// DirOption is a functional option for a Dir.
type DirOption func(*Dir)

// WithSpaceBuffer sets the free disk space that must remain after a write.
func WithSpaceBuffer(n uint64) DirOption {
	return func(d *Dir) { d.spaceBuffer = n }
}

// NewDir returns a Dir storing objects in path. The directory is created on
// first upload if it does not exist.
func NewDir(path string, l logging.Logger, opts ...DirOption) *Dir {
	d := &Dir{path: path, log: l, spaceBuffer: DefaultSpaceBuffer}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the file path of the named object.
func (d *Dir) Path(name string) string { return filepath.Join(d.path, name) }

// Upload implements Bucket.
func (d *Dir) Upload(ctx context.Context, name string, src io.ReadSeeker) error {
	size, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("could not seek source: %w", err)
	}
	_, err = src.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("could not rewind source: %w", err)
	}
	err = ctx.Err()
	if err != nil {
		return err
	}

	err = os.MkdirAll(d.path, 0o755)
	if err != nil {
		return fmt.Errorf("could not create directory: %w", err)
	}
	err = d.checkSpace(uint64(size))
	if err != nil {
		return err
	}

	err = d.write(name, src)
	if err != nil {
		return err
	}

	_, err = src.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("could not rewind source: %w", err)
	}
	return nil
}

func (d *Dir) write(name string, src io.Reader) (err error) {
	tmp, err := os.CreateTemp(d.path, "."+name+".*")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, src)
	if err != nil {
		return fmt.Errorf("could not write %s: %w", name, err)
	}
	err = tmp.Sync()
	if err != nil {
		return fmt.Errorf("could not sync %s: %w", name, err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("could not close %s: %w", name, err)
	}
	err = os.Rename(tmp.Name(), d.Path(name))
	if err != nil {
		return fmt.Errorf("could not rename %s: %w", name, err)
	}
	d.log.Debug(pkg+"wrote file", "name", name, "bytes", n)
	return d.syncDir()
}

// syncDir makes the most recent rename durable.
func (d *Dir) syncDir() error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("could not open directory: %w", err)
	}
	defer f.Close()
	err = f.Sync()
	if err != nil {
		d.log.Warning(pkg+"could not sync directory", "error", err)
	}
	return nil
}

// Download implements Bucket.
func (d *Dir) Download(ctx context.Context, name string, dst io.Writer) error {
	err := ctx.Err()
	if err != nil {
		return err
	}
	f, err := os.Open(d.Path(name))
	if err != nil {
		return fmt.Errorf("could not open %s: %w", name, err)
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", name, err)
	}
	return nil
}

// checkSpace returns ErrNoSpace if writing size bytes would leave less than
// the space buffer free on the directory's file system.
func (d *Dir) checkSpace(size uint64) error {
	var stat syscall.Statfs_t
	err := syscall.Statfs(d.path, &stat)
	if err != nil {
		return fmt.Errorf("could not read disk space, abandoning write: %w", err)
	}
	available := stat.Bavail * uint64(stat.Bsize)
	d.log.Debug(pkg+"available disk space in bytes", "available", available)
	if available < size || available-size < d.spaceBuffer {
		return fmt.Errorf("%w: %d bytes available with a buffer of %d bytes, abandoning write", ErrNoSpace, available, d.spaceBuffer)
	}
	return nil
}

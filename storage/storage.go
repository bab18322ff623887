/*
DESCRIPTION
  storage.go provides Manager, which persists captured images to one of two
  alternating slots and records the slot holding the newest complete image in
  a status record, so that an interrupted write never destroys the last good
  image.

AUTHORS
  stillcam contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package storage provides crash safe storage of the latest captured image.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
)

// To indicate package when logging.
const pkg = "storage: "

// Object names.
const (
	Primary    = "primary"
	Secondary  = "secondary"
	StatusName = "status.json"
)

// ErrNoStatus is returned by Latest when no status record has been written.
var ErrNoStatus = errors.New("no status record")

// Status records which slot holds the most recent complete image.
type Status struct {
	IsPrimary bool
	Timestamp time.Time
}

// Bucket is a destination for named objects.
type Bucket interface {
	// Upload writes all of src to the named object, replacing any existing
	// object. src is rewound before and after the write.
	Upload(ctx context.Context, name string, src io.ReadSeeker) error

	// Download writes the named object to dst. If the object does not exist
	// the returned error wraps fs.ErrNotExist.
	Download(ctx context.Context, name string, dst io.Writer) error
}

// SlotName returns the object name of the primary or secondary slot for
// images with extension ext.
func SlotName(primary bool, ext string) string {
	if primary {
		return Primary + "." + ext
	}
	return Secondary + "." + ext
}

// Manager stores images to a Bucket, alternating between the primary and
// secondary slots. Manager is not safe for concurrent calls to Store, but
// Status may be called concurrently with Store.
type Manager struct {
	bucket Bucket
	ext    string
	log    logging.Logger
	now    func() time.Time

	mu   sync.Mutex
	last Status
}

// NewManager returns a Manager storing images with extension ext to b. The
// first image is stored to the primary slot.
func NewManager(b Bucket, ext string, l logging.Logger) *Manager {
	return &Manager{bucket: b, ext: ext, log: l, now: time.Now}
}

// Status returns a copy of the last status record written.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Store writes the image in src to the slot not named by the current status
// record and then updates the status record to name that slot. If the image
// can't be written the status record is left alone. If the status record
// can't be written, the image is stored but not yet current, and the next
// Store targets the same slot again.
func (m *Manager) Store(ctx context.Context, src io.ReadSeeker) error {
	prev := m.Status()
	target := !prev.IsPrimary
	name := SlotName(target, m.ext)

	m.log.Debug(pkg+"storing image", "slot", name)
	err := m.bucket.Upload(ctx, name, src)
	if err != nil {
		return fmt.Errorf("could not upload image to %s: %w", name, err)
	}

	next := Status{IsPrimary: target, Timestamp: m.now()}
	m.setStatus(next)

	b, err := json.Marshal(next)
	if err != nil {
		m.setStatus(prev)
		return fmt.Errorf("could not marshal status: %w", err)
	}
	err = m.bucket.Upload(ctx, StatusName, bytes.NewReader(b))
	if err != nil {
		m.setStatus(prev)
		return fmt.Errorf("could not upload status: %w", err)
	}
	m.log.Debug(pkg+"image stored", "slot", name, "timestamp", next.Timestamp)
	return nil
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.last = s
	m.mu.Unlock()
}

// Latest reads the status record from b and returns the name of the slot
// holding the newest complete image with extension ext.
func Latest(ctx context.Context, b Bucket, ext string) (string, Status, error) {
	var buf bytes.Buffer
	err := b.Download(ctx, StatusName, &buf)
	if errors.Is(err, fs.ErrNotExist) {
		return "", Status{}, ErrNoStatus
	}
	if err != nil {
		return "", Status{}, fmt.Errorf("could not download status: %w", err)
	}

	var s Status
	err = json.Unmarshal(buf.Bytes(), &s)
	if err != nil {
		return "", Status{}, fmt.Errorf("could not unmarshal status: %w", err)
	}
	return SlotName(s.IsPrimary, ext), s, nil
}

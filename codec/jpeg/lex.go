/*
DESCRIPTION
  lex.go provides a lexer to split a stream of concatenated JPEG images, such
  as an MJPEG file or camera utility output, into discrete frames.

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package jpeg provides splitting of JPEG byte streams into frames.
package jpeg

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// JPEG markers.
var (
	soi = []byte{0xff, 0xd8} // Start of image.
	eoi = []byte{0xff, 0xd9} // End of image.
)

// ErrNotFrameStart is returned when a frame does not begin with a start of
// image marker.
var ErrNotFrameStart = errors.New("not JPEG frame start")

// NextFrame reads one complete JPEG image from r. Images embedded in the
// frame, e.g. EXIF thumbnails, are counted so the frame ends at the end of
// image marker that balances the opening start of image marker. io.EOF is
// returned if r is exhausted before a frame starts; io.ErrUnexpectedEOF if it
// is exhausted part way through a frame.
func NextFrame(r *bufio.Reader) ([]byte, error) {
	buf := make([]byte, 2, 4<<10)
	n, err := io.ReadFull(r, buf)
	switch {
	case n == 0 && err == io.EOF:
		return nil, io.EOF
	case err != nil:
		return nil, io.ErrUnexpectedEOF
	}

	if !bytes.Equal(buf, soi) {
		return nil, errors.Wrapf(ErrNotFrameStart, "got %#v", buf)
	}

	nImg := 1
	var last byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, errors.Wrap(err, "could not read frame byte")
		}
		buf = append(buf, b)

		if last == 0xff {
			switch b {
			case soi[1]:
				nImg++
			case eoi[1]:
				nImg--
			}
		}

		if nImg == 0 {
			return buf, nil
		}
		last = b
	}
}

// Frames returns all JPEG frames read from src until it is exhausted. Data
// after the last frame is ignored if it holds no further start of image
// marker, as when an MJPEG file ends with a newline.
func Frames(src io.Reader) ([][]byte, error) {
	r := bufio.NewReader(src)
	var frames [][]byte
	for {
		if len(frames) != 0 {
			b, _ := r.Peek(len(soi))
			if !bytes.Equal(b, soi) {
				rest, err := io.ReadAll(r)
				if err != nil {
					return frames, errors.Wrap(err, "could not read trailing data")
				}
				if bytes.Contains(rest, soi) {
					return frames, errors.Wrapf(ErrNotFrameStart, "%d bytes before frame %d", bytes.Index(rest, soi), len(frames))
				}
				return frames, nil
			}
		}

		f, err := NextFrame(r)
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, errors.Wrapf(err, "could not lex frame %d", len(frames))
		}
		frames = append(frames, f)
	}
}

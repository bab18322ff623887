//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  decode.go provides JPEG lightness metering using the standard library
  decoder for builds without Open CV.

AUTHORS
  stillcam contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package lightness

import (
	"bytes"
	"fmt"
	"image/jpeg"
)

// OfJPEG decodes the JPEG image b and returns its mean lightness.
func OfJPEG(b []byte) (float64, error) {
	if len(b) == 0 {
		return 0, ErrEmptyImage
	}
	img, err := jpeg.Decode(bytes.NewReader(b))
	if err != nil {
		return 0, fmt.Errorf("image can't be decoded: %w", err)
	}
	return OfImage(img)
}

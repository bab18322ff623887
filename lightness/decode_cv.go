//go:build withcv
// +build withcv

/*
DESCRIPTION
  decode_cv.go provides JPEG lightness metering using GoCV, which decodes
  straight into a BGR pixel buffer.

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
	"fmt"

	"gocv.io/x/gocv"
)

// OfJPEG decodes the JPEG image b and returns its mean lightness.
func OfJPEG(b []byte) (float64, error) {
	if len(b) == 0 {
		return 0, ErrEmptyImage
	}
	img, err := gocv.IMDecode(b, gocv.IMReadColor)
	if err != nil {
		return 0, fmt.Errorf("image can't be decoded: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return 0, ErrEmptyImage
	}
	if img.Channels() != BGR {
		return 0, fmt.Errorf("unexpected channel count: %d", img.Channels())
	}
	return Mean(img.ToBytes(), img.Cols(), img.Rows(), img.Step(), BGR), nil
}

/*
DESCRIPTION
  lightness.go provides calculation of the average perceived lightness of an
  image, used to judge ambient light before choosing camera exposure.

AUTHORS
  stillcam contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package lightness provides scene lightness metering of raw and encoded
// images.
package lightness

import (
	"errors"
	"image"
)

// Perceived luminance weights.
const (
	weightB = 0.114
	weightG = 0.587
	weightR = 0.299
)

// Supported pixel sizes in bytes.
const (
	BGR  = 3
	BGRA = 4
)

// ErrEmptyImage is returned when an image has no pixels to meter.
var ErrEmptyImage = errors.New("image has no pixels")

// Mean returns the average perceived luminance of the pixels in pix,
// normalised to [0,1] where 0 is black and 1 is white. pix holds height rows
// of stride bytes, each row holding width pixels of bpp bytes in blue, green,
// red(, alpha) order. stride may exceed width*bpp where rows are padded.
// The result is undefined for zero sized images.
func Mean(pix []byte, width, height, stride, bpp int) float64 {
	var sum float64
	for y := 0; y < height; y++ {
		row := pix[y*stride:]
		for x := 0; x < width; x++ {
			i := x * bpp
			sum += weightB*float64(row[i]) + weightG*float64(row[i+1]) + weightR*float64(row[i+2])
		}
	}
	avg := sum / float64(width*height)
	return avg / 255
}

// OfImage returns the mean lightness of img.
func OfImage(img image.Image) (float64, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0, ErrEmptyImage
	}
	pix, stride := toBGRA(img)
	return Mean(pix, w, h, stride, BGRA), nil
}

// toBGRA copies img into a BGRA pixel buffer, returning the buffer and its
// row stride.
func toBGRA(img image.Image) ([]byte, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w * BGRA
	pix := make([]byte, stride*h)

	// Fast path for the common 8 bit RGBA layout.
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			src := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			dst := pix[y*stride:]
			for x := 0; x < w; x++ {
				i := x * 4
				dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+1], src[i], src[i+3]
			}
		}
		return pix, stride
	}

	for y := 0; y < h; y++ {
		dst := pix[y*stride:]
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := x * BGRA
			dst[i], dst[i+1], dst[i+2], dst[i+3] = byte(bl>>8), byte(g>>8), byte(r>>8), byte(a>>8)
		}
	}
	return pix, stride
}

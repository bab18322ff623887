/*
DESCRIPTION
  lightness_test.go tests lightness metering of raw and encoded images.

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
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"
)

const tolerance = 1e-9

// fill returns a buffer of height rows of stride bytes where each pixel of
// bpp bytes is set to px and any row padding is set to pad.
func fill(width, height, stride, bpp int, px []byte, pad byte) []byte {
	buf := make([]byte, stride*height)
	for i := range buf {
		buf[i] = pad
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			copy(buf[y*stride+x*bpp:], px[:bpp])
		}
	}
	return buf
}

func TestMean(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		stride, bpp   int
		px            []byte
		pad           byte
		want          float64
	}{
		{name: "white BGR", width: 4, height: 3, stride: 12, bpp: BGR, px: []byte{255, 255, 255}, want: 1},
		{name: "black BGR", width: 4, height: 3, stride: 12, bpp: BGR, px: []byte{0, 0, 0}, want: 0},
		{name: "white BGRA", width: 5, height: 2, stride: 20, bpp: BGRA, px: []byte{255, 255, 255, 255}, want: 1},
		{name: "black BGRA opaque", width: 5, height: 2, stride: 20, bpp: BGRA, px: []byte{0, 0, 0, 255}, want: 0},
		{name: "blue", width: 2, height: 2, stride: 6, bpp: BGR, px: []byte{255, 0, 0}, want: weightB},
		{name: "green", width: 2, height: 2, stride: 6, bpp: BGR, px: []byte{0, 255, 0}, want: weightG},
		{name: "red", width: 2, height: 2, stride: 6, bpp: BGR, px: []byte{0, 0, 255}, want: weightR},
		{name: "padded rows ignored", width: 3, height: 4, stride: 16, bpp: BGR, px: []byte{0, 0, 0}, pad: 255, want: 0},
		{name: "padded BGRA rows ignored", width: 3, height: 2, stride: 16, bpp: BGRA, px: []byte{255, 255, 255, 0}, pad: 0, want: 1},
	}

	for _, test := range tests {
		pix := fill(test.width, test.height, test.stride, test.bpp, test.px, test.pad)
		got := Mean(pix, test.width, test.height, test.stride, test.bpp)
		if math.Abs(got-test.want) > tolerance {
			t.Errorf("%s: unexpected lightness, want: %v, got: %v", test.name, test.want, got)
		}
	}
}

func TestMeanMixed(t *testing.T) {
	// Half white, half black pixels should average to 0.5.
	const w, h = 2, 2
	pix := []byte{
		255, 255, 255, 0, 0, 0,
		0, 0, 0, 255, 255, 255,
	}
	got := Mean(pix, w, h, w*BGR, BGR)
	if math.Abs(got-0.5) > tolerance {
		t.Errorf("unexpected lightness, want: 0.5, got: %v", got)
	}
}

func TestOfImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	got, err := OfImage(img)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if math.Abs(got-weightR) > tolerance {
		t.Errorf("unexpected lightness for red image, want: %v, got: %v", weightR, got)
	}

	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range gray.Pix {
		gray.Pix[i] = 255
	}
	got, err = OfImage(gray)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if math.Abs(got-1) > 1e-6 {
		t.Errorf("unexpected lightness for white gray image, want: 1, got: %v", got)
	}

	_, err = OfImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage for empty image, got: %v", err)
	}
}

func TestOfJPEG(t *testing.T) {
	tests := []struct {
		level uint8
		want  float64
	}{
		{level: 0, want: 0},
		{level: 128, want: 128.0 / 255},
		{level: 255, want: 1},
	}

	// JPEG is lossy so allow some slack.
	const jpegTolerance = 0.02

	for _, test := range tests {
		img := image.NewGray(image.Rect(0, 0, 32, 24))
		for i := range img.Pix {
			img.Pix[i] = test.level
		}
		var buf bytes.Buffer
		err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
		if err != nil {
			t.Fatalf("could not encode test image: %v", err)
		}

		got, err := OfJPEG(buf.Bytes())
		if err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if math.Abs(got-test.want) > jpegTolerance {
			t.Errorf("unexpected lightness for level %d, want: %v, got: %v", test.level, test.want, got)
		}
	}
}

func TestOfJPEGBad(t *testing.T) {
	_, err := OfJPEG(nil)
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage for empty input, got: %v", err)
	}

	_, err = OfJPEG([]byte{0x00, 0x01, 0x02})
	if err == nil {
		t.Error("expected error for bad JPEG data")
	}
}

/*
DESCRIPTION
  exposure.go provides the exposure policy used to choose camera shutter speed
  and ISO from a measured scene brightness.

AUTHORS
  stillcam contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package exposure maps scene brightness to camera exposure presets.
package exposure

import (
	"fmt"
	"time"
)

// Brightness thresholds. A brightness equal to a threshold falls into the
// darker bucket.
const (
	DarkThreshold = 0.01
	DimThreshold  = 0.10
)

// Preset holds the exposure parameters given to a camera. Zero values mean
// the camera should choose for itself (auto exposure).
type Preset struct {
	Shutter time.Duration
	ISO     uint
}

// The presets selected by For.
var (
	Dark   = Preset{Shutter: 2 * time.Second, ISO: 800}
	Dim    = Preset{Shutter: 1200 * time.Millisecond, ISO: 800}
	Normal = Preset{}
)

// For returns the preset to use for a scene of the given brightness, where 0
// is black and 1 is white.
func For(brightness float64) Preset {
	switch {
	case brightness <= DarkThreshold:
		return Dark
	case brightness <= DimThreshold:
		return Dim
	default:
		return Normal
	}
}

// IsAuto reports whether p leaves both shutter speed and ISO to the camera.
func (p Preset) IsAuto() bool { return p.Shutter == 0 && p.ISO == 0 }

// Name returns the name of the bucket p belongs to, i.e. "dark", "dim" or
// "normal". Presets that are not one of the package presets are "custom".
func (p Preset) Name() string {
	switch p {
	case Dark:
		return "dark"
	case Dim:
		return "dim"
	case Normal:
		return "normal"
	default:
		return "custom"
	}
}

func (p Preset) String() string {
	if p.IsAuto() {
		return "auto"
	}
	return fmt.Sprintf("shutter=%v iso=%d", p.Shutter, p.ISO)
}

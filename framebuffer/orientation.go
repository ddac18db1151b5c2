// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package framebuffer

import (
	"fmt"
	"image"
)

// Orientation selects how logical drawing coordinates map onto the physical
// panel. It is chosen once per session.
type Orientation uint8

const (
	// Portrait maps logical coordinates onto the panel unchanged.
	Portrait Orientation = iota
	// Landscape rotates the logical canvas by 90°. The rotation happens while
	// rasterizing; the buffer layout stays physical.
	Landscape
)

func (o Orientation) String() string {
	switch o {
	case Portrait:
		return "portrait"
	case Landscape:
		return "landscape"
	}
	return fmt.Sprintf("Orientation(%d)", uint8(o))
}

// ParseOrientation returns the orientation named s.
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "portrait":
		return Portrait, nil
	case "landscape", "":
		return Landscape, nil
	}
	return Landscape, fmt.Errorf("framebuffer: unknown orientation %q", s)
}

// Logical returns the size of the logical canvas for a physical panel of
// width x height pixels.
func (o Orientation) Logical(width, height int) image.Point {
	if o == Landscape {
		return image.Pt(height, width)
	}
	return image.Pt(width, height)
}

// Map converts the logical point (x, y) to a physical pixel position on a
// panel that is width pixels wide. In landscape mode logical rows count down
// from the physical right edge and logical columns run along the physical
// rows:
//
//	physX = width - y
//	physY = x
//
// Results may fall outside the panel; SetPixel clips them.
func (o Orientation) Map(width, x, y int) image.Point {
	if o == Landscape {
		return image.Pt(width-y, x)
	}
	return image.Pt(x, y)
}

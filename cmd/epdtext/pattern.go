// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"image/color"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/GermanBionicSystems/epaper/glyph"
	"github.com/GermanBionicSystems/epaper/textscreen"
	"github.com/fogleman/gg"
)

const checkerBlock = 8

// checkerboard marks alternating block x block squares of f, starting with
// the top-left one.
func checkerboard(f *framebuffer.Frame, block int) {
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			if (x/block+y/block)%2 == 0 {
				f.SetPixel(x, y)
			}
		}
	}
}

// pattern returns the named test frame for a width x height panel.
func pattern(name string, width, height int) (*framebuffer.Frame, error) {
	f := framebuffer.New(width, height)
	switch name {
	case "checkerboard":
		checkerboard(f, checkerBlock)
	case "black":
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				f.SetPixel(x, y)
			}
		}
	case "white":
	default:
		return nil, fmt.Errorf("unknown pattern %q", name)
	}
	return f, nil
}

// textFrame lays text out on a blank frame with the basic font.
func textFrame(text string, width, height int, o framebuffer.Orientation) (*framebuffer.Frame, textscreen.Placement) {
	f := framebuffer.New(width, height)
	p := textscreen.Layout(f, glyph.Basic(), o, text)
	return f, p
}

// snapshot draws f as seen by a reader, marks in black on white, each pixel
// a scale x scale square.
func snapshot(f *framebuffer.Frame, o framebuffer.Orientation, scale int) *gg.Context {
	if scale < 1 {
		scale = 1
	}
	size := o.Logical(f.Width(), f.Height())
	dc := gg.NewContext(size.X*scale, size.Y*scale)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetColor(color.Black)
	s := float64(scale)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if pt := o.Map(f.Width(), x, y); f.Marked(pt.X, pt.Y) {
				dc.DrawRectangle(float64(x)*s, float64(y)*s, s, s)
			}
		}
	}
	dc.Fill()
	return dc
}

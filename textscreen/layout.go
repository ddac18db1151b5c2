// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package textscreen

import (
	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/GermanBionicSystems/epaper/glyph"
)

// Placement summarizes a layout pass.
type Placement struct {
	// Glyphs is the number of characters rasterized.
	Glyphs int
	// Lines is the number of text rows holding at least one glyph.
	Lines int
	// Truncated is the number of trailing bytes that did not fit.
	Truncated int
}

// Layout rasterizes text into f. f is not cleared first.
//
// A newline moves to column 0 of the next row. A glyph that would cross the
// right edge of the logical canvas starts a new row. The first glyph whose
// row would cross the bottom edge ends the layout.
func Layout(f *framebuffer.Frame, font *glyph.Table, o framebuffer.Orientation, text string) Placement {
	size := o.Logical(f.Width(), f.Height())
	var p Placement
	x, y := 0, 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			x = 0
			y += font.Height
			continue
		}
		if x+font.Width > size.X {
			x = 0
			y += font.Height
		}
		if y+font.Height > size.Y {
			p.Truncated = len(text) - i
			break
		}
		drawGlyph(f, font, o, x, y, c)
		p.Glyphs++
		p.Lines = y/font.Height + 1
		x += font.Width
	}
	return p
}

// drawGlyph rasterizes c with its top left corner at the logical (x, y).
func drawGlyph(f *framebuffer.Frame, font *glyph.Table, o framebuffer.Orientation, x, y int, c byte) {
	for j, row := range font.Rows(c) {
		if row == 0 {
			continue
		}
		for i := 0; i < font.Width; i++ {
			if row&(0x80>>i) == 0 {
				continue
			}
			pt := o.Map(f.Width(), x+i, y+j)
			f.SetPixel(pt.X, pt.Y)
		}
	}
}

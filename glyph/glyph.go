// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package glyph provides the fixed-size ASCII glyph table used to print text
// on monochrome panels.
//
// Each glyph is a run of Height row bitmaps, one byte per row. The leftmost
// pixel of a row is the most significant bit, so glyphs are at most 8 pixels
// wide.
package glyph

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/font/basicfont"
)

// Table maps printable ASCII characters to row bitmaps.
type Table struct {
	// Width is the horizontal advance of every glyph in pixels.
	Width int
	// Height is the number of rows of every glyph.
	Height int
	// First and Last delimit the covered character range, inclusive.
	First, Last byte

	rows  []byte
	blank []byte
}

// New builds a table from a flat slice of row bitmaps, Height bytes per
// character starting at first.
func New(width, height int, first byte, rows []byte) (*Table, error) {
	if width < 1 || width > 8 {
		return nil, fmt.Errorf("glyph: width %d out of range 1..8", width)
	}
	if height < 1 {
		return nil, fmt.Errorf("glyph: invalid height %d", height)
	}
	if len(rows) == 0 || len(rows)%height != 0 {
		return nil, fmt.Errorf("glyph: %d bytes is not a multiple of height %d", len(rows), height)
	}
	n := len(rows) / height
	if int(first)+n-1 > 0xFF {
		return nil, fmt.Errorf("glyph: %d glyphs starting at %#x overflow a byte", n, first)
	}

	return &Table{
		Width:  width,
		Height: height,
		First:  first,
		Last:   byte(int(first) + n - 1),
		rows:   append([]byte(nil), rows...),
		blank:  make([]byte, height),
	}, nil
}

// Has reports whether c has its own glyph.
func (t *Table) Has(c byte) bool {
	return c >= t.First && c <= t.Last
}

// Rows returns the Height row bitmaps for c. Characters outside the table
// render as a blank cell. The returned slice must not be modified.
func (t *Table) Rows(c byte) []byte {
	if !t.Has(c) {
		return t.blank
	}
	i := int(c-t.First) * t.Height
	return t.rows[i : i+t.Height]
}

var (
	basicOnce  sync.Once
	basicTable *Table
)

// Basic returns the table for ' '..'~' rendered from the 7x13 fixed face of
// golang.org/x/image/font/basicfont. It is built on first use.
func Basic() *Table {
	basicOnce.Do(func() {
		t, err := FromFace(basicfont.Face7x13, ' ', '~')
		if err != nil {
			panic(err)
		}
		basicTable = t
	})
	return basicTable
}

// FromFace rasterizes characters first..last of a basicfont face into a
// table. The cell is Advance pixels wide and Height rows high.
func FromFace(f *basicfont.Face, first, last byte) (*Table, error) {
	if last < first {
		return nil, fmt.Errorf("glyph: empty range %#x..%#x", first, last)
	}
	if f.Advance > 8 {
		return nil, fmt.Errorf("glyph: advance %d does not fit a byte", f.Advance)
	}

	rows := make([]byte, 0, (int(last)-int(first)+1)*f.Height)

	for c := int(first); c <= int(last); c++ {
		origin, ok := maskOrigin(f, rune(c))

		for j := 0; j < f.Height; j++ {
			var row byte

			if ok {
				for i := 0; i < f.Width && i < 8; i++ {
					if _, _, _, a := f.Mask.At(origin.X+i, origin.Y+j).RGBA(); a >= 0x8000 {
						row |= 0x80 >> uint(i)
					}
				}
			}

			rows = append(rows, row)
		}
	}

	return New(f.Advance, f.Height, first, rows)
}

// maskOrigin locates the top-left corner of r's glyph within the face mask.
func maskOrigin(f *basicfont.Face, r rune) (image.Point, bool) {
	for _, rr := range f.Ranges {
		if r >= rr.Low && r < rr.High {
			return image.Pt(0, (int(r-rr.Low)+rr.Offset)*f.Height), true
		}
	}
	return image.Point{}, false
}

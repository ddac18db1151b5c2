// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package framebuffer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Unmarked is the fill value written by Clear.
const Unmarked byte = 0x00

// Frame is a fixed size, MSB-first packed monochrome buffer.
type Frame struct {
	width     int
	height    int
	byteWidth int
	pix       []byte
}

var _ draw.Image = &Frame{}

// New returns a cleared frame for a panel of the given size in pixels.
func New(width, height int) *Frame {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("framebuffer: invalid size %dx%d", width, height))
	}

	bw := (width + 7) / 8

	return &Frame{
		width:     width,
		height:    height,
		byteWidth: bw,
		pix:       make([]byte, bw*height),
	}
}

// Width returns the width in pixels.
func (f *Frame) Width() int {
	return f.width
}

// Height returns the height in pixels.
func (f *Frame) Height() int {
	return f.height
}

// ByteWidth returns the number of bytes per row.
func (f *Frame) ByteWidth() int {
	return f.byteWidth
}

// Len returns the buffer size in bytes. It never changes.
func (f *Frame) Len() int {
	return len(f.pix)
}

func (f *Frame) in(x, y int) bool {
	return x >= 0 && x < f.width && y >= 0 && y < f.height
}

func (f *Frame) offset(x, y int) (int, byte) {
	return y*f.byteWidth + x/8, 0x80 >> uint(x%8)
}

// SetPixel marks the pixel at (x, y). Coordinates outside the frame are
// ignored.
func (f *Frame) SetPixel(x, y int) {
	if !f.in(x, y) {
		return
	}
	i, mask := f.offset(x, y)
	f.pix[i] |= mask
}

// ClearPixel unmarks the pixel at (x, y). Coordinates outside the frame are
// ignored.
func (f *Frame) ClearPixel(x, y int) {
	if !f.in(x, y) {
		return
	}
	i, mask := f.offset(x, y)
	f.pix[i] &^= mask
}

// Marked reports whether the pixel at (x, y) is marked. Coordinates outside
// the frame are never marked.
func (f *Frame) Marked(x, y int) bool {
	if !f.in(x, y) {
		return false
	}
	i, mask := f.offset(x, y)
	return f.pix[i]&mask != 0
}

// Clear sets every byte to Unmarked.
func (f *Frame) Clear() {
	for i := range f.pix {
		f.pix[i] = Unmarked
	}
}

// Bytes returns the underlying buffer, row-major. The slice aliases the frame
// and must be treated as read-only by callers.
func (f *Frame) Bytes() []byte {
	return f.pix
}

// Copy returns an independent copy of the buffer contents.
func (f *Frame) Copy() []byte {
	return append([]byte(nil), f.pix...)
}

// Load replaces the buffer contents. The source must have exactly Len bytes.
func (f *Frame) Load(src []byte) error {
	if len(src) != len(f.pix) {
		return fmt.Errorf("framebuffer: got %d bytes, want %d", len(src), len(f.pix))
	}
	copy(f.pix, src)
	return nil
}

// Equal reports whether both frames have the same geometry and contents.
func (f *Frame) Equal(o *Frame) bool {
	return f.width == o.width && f.height == o.height && bytes.Equal(f.pix, o.pix)
}

// ColorModel implements image.Image.
func (f *Frame) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements image.Image.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// At implements image.Image. Marked pixels are image1bit.On.
func (f *Frame) At(x, y int) color.Color {
	return image1bit.Bit(f.Marked(x, y))
}

// Set implements draw.Image.
func (f *Frame) Set(x, y int, c color.Color) {
	if image1bit.BitModel.Convert(c).(image1bit.Bit) {
		f.SetPixel(x, y)
	} else {
		f.ClearPixel(x, y)
	}
}

// String returns the geometry of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("framebuffer.Frame{%dx%d, %d bytes}", f.width, f.height, len(f.pix))
}

// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package screen2d implements a display.Drawer previewing a 1 bit e-paper
// frame on a terminal using ANSI color codes.
//
// Useful while the panel is not wired yet, or over ssh.
package screen2d

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Opts represents the options available for this display.
type Opts struct {
	// Width and Height of the physical panel.
	Width, Height int
	// Orientation rotates the preview.
	Orientation framebuffer.Orientation
	// Step samples one pixel out of Step in both directions. 0 means 1.
	Step int
	// Ink and Paper are the colors of marked and unmarked pixels.
	// They default to black and white.
	Ink, Paper color.Color
	Palette    *ansi256.Palette
	// W defaults to a colorable stdout.
	W io.Writer

	_ struct{}
}

// Dev is an e-paper emulator that outputs to the console.
type Dev struct {
	w           io.Writer
	palette     ansi256.Palette
	orientation framebuffer.Orientation
	step        int
	ink, paper  string

	frame *framebuffer.Frame
	buf   bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	step := opts.Step
	if step < 1 {
		step = 1
	}
	ink, paper := opts.Ink, opts.Paper
	if ink == nil {
		ink = color.Black
	}
	if paper == nil {
		paper = color.White
	}
	return &Dev{
		w:           w,
		palette:     *p,
		orientation: opts.Orientation,
		step:        step,
		ink:         p.Block(color.NRGBAModel.Convert(ink).(color.NRGBA)),
		paper:       p.Block(color.NRGBAModel.Convert(paper).(color.NRGBA)),
		frame:       framebuffer.New(opts.Width, opts.Height),
	}
}

func (d *Dev) String() string {
	return "Screen2D"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors so the console is not corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\033[0m\n"))
	return err
}

// Write accepts a packed frame, as sent to the panel, and prints it.
func (d *Dev) Write(frame []byte) (int, error) {
	if err := d.frame.Load(frame); err != nil {
		return 0, err
	}
	if err := d.refresh(); err != nil {
		return 0, err
	}
	return len(frame), nil
}

// Show prints f.
func (d *Dev) Show(f *framebuffer.Frame) error {
	_, err := d.Write(f.Bytes())
	return err
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.frame.Bounds()
}

// Draw implements display.Drawer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Src.Draw(d.frame, r.Intersect(d.frame.Bounds()), src, sp)
	return d.refresh()
}

func (d *Dev) refresh() error {
	// This code is designed to minimize the amount of memory allocated per call.
	d.buf.Reset()
	size := d.orientation.Logical(d.frame.Width(), d.frame.Height())
	for y := 0; y < size.Y; y += d.step {
		_, _ = d.buf.WriteString("\033[0m")
		for x := 0; x < size.X; x += d.step {
			pt := d.orientation.Map(d.frame.Width(), x, y)
			if d.frame.Marked(pt.X, pt.Y) {
				_, _ = d.buf.WriteString(d.ink)
			} else {
				_, _ = d.buf.WriteString(d.paper)
			}
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}

// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package videosink

import (
	"image"
	"image/color"
	"testing"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func TestNewHalt(t *testing.T) {
	d := New(&Options{Width: 100, Height: 100})

	if err := d.Halt(); err != nil {
		t.Errorf("Halt() failed: %v", err)
	}
}

func TestImage(t *testing.T) {
	f := framebuffer.New(8, 4)
	f.SetPixel(0, 0)
	f.SetPixel(7, 3)

	for _, tc := range []struct {
		name string
		opt  Options
		size image.Point
		// ink lists the image pixels expected black.
		ink []image.Point
	}{
		{
			name: "portrait",
			opt:  Options{Width: 8, Height: 4},
			size: image.Pt(8, 4),
			ink:  []image.Point{{0, 0}, {7, 3}},
		},
		{
			name: "portrait, scale 2",
			opt:  Options{Width: 8, Height: 4, Scale: 2},
			size: image.Pt(16, 8),
			ink: []image.Point{
				{0, 0}, {1, 0}, {0, 1}, {1, 1},
				{14, 6}, {15, 6}, {14, 7}, {15, 7},
			},
		},
		{
			// Logical (x, y) shows physical (8 - y, x), so physical column 0
			// has no logical pixel.
			name: "landscape",
			opt:  Options{Width: 8, Height: 4, Orientation: framebuffer.Landscape},
			size: image.Pt(4, 8),
			ink:  []image.Point{{3, 1}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := New(&tc.opt)
			if err := d.Update(f); err != nil {
				t.Fatalf("Update() failed: %v", err)
			}
			img := d.Image()
			if diff := cmp.Diff(img.Bounds().Size(), tc.size); diff != "" {
				t.Fatalf("image size difference (-got +want):\n%s", diff)
			}

			ink := map[image.Point]bool{}
			for _, p := range tc.ink {
				ink[p] = true
			}
			for y := 0; y < tc.size.Y; y++ {
				for x := 0; x < tc.size.X; x++ {
					want := color.Gray{Y: 0xff}
					if ink[image.Pt(x, y)] {
						want = color.Gray{}
					}
					if got := img.GrayAt(x, y); got != want {
						t.Errorf("GrayAt(%d, %d) = %v, want %v", x, y, got, want)
					}
				}
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	d := New(&Options{Width: 16, Height: 2})
	f := framebuffer.New(16, 2)

	if err := d.Update(f); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if got := d.Version(); got != 0 {
		t.Errorf("unchanged frame bumped the version to %d", got)
	}

	f.SetPixel(3, 1)
	if err := d.Update(f); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if got := d.Version(); got != 1 {
		t.Errorf("Version() = %d, want 1", got)
	}

	if err := d.Update(framebuffer.New(8, 2)); err == nil {
		t.Error("Update() with a different geometry succeeded")
	}
}

func TestDraw(t *testing.T) {
	d := New(&Options{Width: 8, Height: 8})
	if err := d.Draw(image.Rect(2, 2, 4, 4), &image.Uniform{image1bit.On}, image.Point{}); err != nil {
		t.Fatalf("Draw() failed: %v", err)
	}
	img := d.Image()
	for _, p := range []image.Point{{2, 2}, {3, 3}} {
		if got := img.GrayAt(p.X, p.Y); got != (color.Gray{}) {
			t.Errorf("GrayAt(%v) = %v, want black", p, got)
		}
	}
	if got := img.GrayAt(4, 4); got != (color.Gray{Y: 0xff}) {
		t.Errorf("GrayAt(4, 4) = %v, want white", got)
	}
}

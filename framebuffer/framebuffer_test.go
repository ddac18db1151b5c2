// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package framebuffer

import (
	"bytes"
	"image"
	"image/draw"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		name          string
		width, height int
		wantByteWidth int
		wantLen       int
	}{
		{name: "empty"},
		{name: "aligned", width: 128, height: 2, wantByteWidth: 16, wantLen: 32},
		{name: "2in13", width: 122, height: 250, wantByteWidth: 16, wantLen: 4000},
		{name: "single pixel", width: 1, height: 1, wantByteWidth: 1, wantLen: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := New(tc.width, tc.height)

			if got := f.ByteWidth(); got != tc.wantByteWidth {
				t.Errorf("ByteWidth() = %d, want %d", got, tc.wantByteWidth)
			}
			if got := f.Len(); got != tc.wantLen {
				t.Errorf("Len() = %d, want %d", got, tc.wantLen)
			}
			if diff := cmp.Diff(f.Bounds(), image.Rect(0, 0, tc.width, tc.height)); diff != "" {
				t.Errorf("Bounds() difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestSetPixelTogglesOneBit(t *testing.T) {
	f := New(122, 250)

	for y := 0; y < 250; y++ {
		for x := 0; x < 122; x++ {
			f.Clear()
			f.SetPixel(x, y)

			want := make([]byte, 16*250)
			want[y*16+x/8] = 1 << (7 - x%8)

			if !bytes.Equal(f.Bytes(), want) {
				t.Fatalf("SetPixel(%d, %d) produced unexpected buffer", x, y)
			}
			if !f.Marked(x, y) {
				t.Fatalf("Marked(%d, %d) = false after SetPixel", x, y)
			}
		}
	}
}

func TestSetPixelOutOfBounds(t *testing.T) {
	f := New(122, 250)
	want := f.Copy()

	for _, pt := range []image.Point{
		{-1, 0},
		{0, -1},
		{122, 0},
		{127, 0},
		{0, 250},
		{122, 250},
		{-100, -100},
		{1 << 20, 3},
	} {
		f.SetPixel(pt.X, pt.Y)
		f.ClearPixel(pt.X, pt.Y)

		if f.Marked(pt.X, pt.Y) {
			t.Errorf("Marked(%v) = true", pt)
		}
	}

	if diff := cmp.Diff(f.Bytes(), want); diff != "" {
		t.Errorf("buffer changed by out of bounds access (-got +want):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	f := New(122, 250)

	for i := 0; i < 122; i += 3 {
		f.SetPixel(i, i)
	}

	for i := 0; i < 2; i++ {
		f.Clear()

		if diff := cmp.Diff(f.Bytes(), bytes.Repeat([]byte{Unmarked}, 16*250)); diff != "" {
			t.Errorf("Clear() difference (-got +want):\n%s", diff)
		}
	}
}

func TestClearPixel(t *testing.T) {
	f := New(16, 1)
	f.SetPixel(0, 0)
	f.SetPixel(9, 0)
	f.ClearPixel(0, 0)

	if diff := cmp.Diff(f.Bytes(), []byte{0x00, 0x40}); diff != "" {
		t.Errorf("ClearPixel() difference (-got +want):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	f := New(8, 2)

	if err := f.Load([]byte{1}); err == nil {
		t.Errorf("Load() with short buffer succeeded")
	}

	if err := f.Load([]byte{0xAA, 0x55}); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !f.Marked(0, 0) || f.Marked(1, 0) || !f.Marked(7, 1) {
		t.Errorf("Load() contents not visible through Marked: %x", f.Bytes())
	}

	other := New(8, 2)
	if f.Equal(other) {
		t.Errorf("Equal() = true for different contents")
	}
	if err := other.Load(f.Copy()); err != nil {
		t.Fatal(err)
	}
	if !f.Equal(other) {
		t.Errorf("Equal() = false for identical contents")
	}
}

func TestDrawImage(t *testing.T) {
	f := New(12, 3)

	draw.Draw(f, image.Rect(2, 1, 10, 2), &image.Uniform{image1bit.On}, image.Point{}, draw.Src)

	want := []byte{
		0x00, 0x00,
		0x3f, 0xc0,
		0x00, 0x00,
	}

	if diff := cmp.Diff(f.Bytes(), want); diff != "" {
		t.Errorf("draw.Draw() difference (-got +want):\n%s", diff)
	}

	if got := f.At(2, 1); got != image1bit.On {
		t.Errorf("At(2, 1) = %v, want On", got)
	}

	draw.Draw(f, f.Bounds(), &image.Uniform{image1bit.Off}, image.Point{}, draw.Src)

	if diff := cmp.Diff(f.Bytes(), make([]byte, 6)); diff != "" {
		t.Errorf("draw.Draw(Off) difference (-got +want):\n%s", diff)
	}
}

func TestOrientation(t *testing.T) {
	for _, tc := range []struct {
		name        string
		o           Orientation
		x, y        int
		wantMap     image.Point
		wantLogical image.Point
	}{
		{
			name:        "portrait",
			o:           Portrait,
			x:           5,
			y:           7,
			wantMap:     image.Pt(5, 7),
			wantLogical: image.Pt(122, 250),
		},
		{
			name:        "landscape origin",
			o:           Landscape,
			wantMap:     image.Pt(122, 0),
			wantLogical: image.Pt(250, 122),
		},
		{
			name:        "landscape",
			o:           Landscape,
			x:           200,
			y:           13,
			wantMap:     image.Pt(109, 200),
			wantLogical: image.Pt(250, 122),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.o.Map(122, tc.x, tc.y), tc.wantMap); diff != "" {
				t.Errorf("Map() difference (-got +want):\n%s", diff)
			}
			if diff := cmp.Diff(tc.o.Logical(122, 250), tc.wantLogical); diff != "" {
				t.Errorf("Logical() difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestParseOrientation(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Orientation
		wantErr bool
	}{
		{in: "portrait", want: Portrait},
		{in: "landscape", want: Landscape},
		{in: "", want: Landscape},
		{in: "diagonal", want: Landscape, wantErr: true},
	} {
		got, err := ParseOrientation(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseOrientation(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseOrientation(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

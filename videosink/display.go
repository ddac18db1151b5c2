// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package videosink mirrors the frame of a 1 bit e-paper panel over HTTP.
// Client requests get an initial snapshot of the frame and are updated
// further on every change.
//
// The protocol used is "MJPEG" (https://en.wikipedia.org/wiki/Motion_JPEG)
// which is often used by IP cameras. Because of its better suitability for
// computer-drawn graphics the PNG image format is used by default. JPEG as
// a format can be selected via Options.Format or using the "format" URL
// parameter.
//
// The mirror shows marked pixels as ink (black) on white paper, rotated to
// the logical orientation text is laid out in.
package videosink

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"net/http"
	"sync"
	"time"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Options for videosink devices.
type Options struct {
	// Width and height of the physical panel.
	Width, Height int

	// Orientation rotates the mirrored image.
	Orientation framebuffer.Orientation

	// Scale enlarges every pixel to a Scale x Scale block. 0 means 1.
	Scale int

	// Format specifies the image format to send to clients.
	Format ImageFormat

	// PNGCompression is passed to the PNG encoder.
	PNGCompression png.CompressionLevel

	// JPEGQuality is passed to the JPEG encoder. 0 means
	// jpeg.DefaultQuality.
	JPEGQuality int

	// Keepalive resends the current image to idle clients at this interval.
	// 0 disables it.
	Keepalive time.Duration

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Display is an http.Handler streaming the frame it was last given.
type Display struct {
	defaultFormat  ImageFormat
	orientation    framebuffer.Orientation
	scale          int
	pngCompression png.CompressionLevel
	jpegOptions    jpeg.Options
	keepalive      time.Duration
	log            logrus.FieldLogger

	mu       sync.Mutex
	frame    *framebuffer.Frame
	version  uint64
	clients  map[*client]struct{}
	snapshot map[imageConfig][]byte
}

var _ display.Drawer = (*Display)(nil)
var _ http.Handler = (*Display)(nil)

// New creates a new videosink device instance.
func New(opt *Options) *Display {
	scale := opt.Scale
	if scale < 1 {
		scale = 1
	}
	quality := opt.JPEGQuality
	if quality == 0 {
		quality = jpeg.DefaultQuality
	}
	log := opt.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Display{
		defaultFormat:  opt.Format,
		orientation:    opt.Orientation,
		scale:          scale,
		pngCompression: opt.PNGCompression,
		jpegOptions:    jpeg.Options{Quality: quality},
		keepalive:      opt.Keepalive,
		log:            log.WithField("dev", "videosink"),
		frame:          framebuffer.New(opt.Width, opt.Height),
		clients:        map[*client]struct{}{},
		snapshot:       map[imageConfig][]byte{},
	}
}

// String returns the name of the device.
func (d *Display) String() string {
	return "VideoSink"
}

// Halt implements conn.Resource and terminates all running client requests
// asynchronously.
func (d *Display) Halt() error {
	d.mu.Lock()
	d.terminateClientsLocked()
	d.mu.Unlock()

	return nil
}

// ColorModel implements display.Drawer.
func (d *Display) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer. It is the physical panel area.
func (d *Display) Bounds() image.Rectangle {
	return d.frame.Bounds()
}

// Draw implements display.Drawer.
func (d *Display) Draw(dstRect image.Rectangle, src image.Image, srcPts image.Point) error {
	d.mu.Lock()
	draw.Src.Draw(d.frame, dstRect.Intersect(d.frame.Bounds()), src, srcPts)
	d.bufferChangedLocked()
	d.mu.Unlock()

	return nil
}

// Update replaces the mirrored frame with a copy of f. Unchanged frames do
// not wake up clients.
func (d *Display) Update(f *framebuffer.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f.Width() != d.frame.Width() || f.Height() != d.frame.Height() {
		return fmt.Errorf("videosink: frame is %dx%d, want %dx%d", f.Width(), f.Height(), d.frame.Width(), d.frame.Height())
	}
	if f.Equal(d.frame) {
		return nil
	}
	if err := d.frame.Load(f.Bytes()); err != nil {
		return err
	}
	d.bufferChangedLocked()
	return nil
}

// Version counts the frame changes seen so far.
func (d *Display) Version() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// Image returns the mirrored image as served to clients.
func (d *Display) Image() *image.Gray {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.imageLocked(d.scale)
}

// imageLocked rotates and scales the frame into a gray image.
func (d *Display) imageLocked(scale int) *image.Gray {
	w, h := d.frame.Width(), d.frame.Height()
	size := d.orientation.Logical(w, h)
	img := image.NewGray(image.Rect(0, 0, size.X*scale, size.Y*scale))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for ly := 0; ly < size.Y; ly++ {
		for lx := 0; lx < size.X; lx++ {
			pt := d.orientation.Map(w, lx, ly)
			if !d.frame.Marked(pt.X, pt.Y) {
				continue
			}
			cell := image.Rect(lx*scale, ly*scale, (lx+1)*scale, (ly+1)*scale)
			draw.Draw(img, cell, image.Black, image.Point{}, draw.Src)
		}
	}
	return img
}

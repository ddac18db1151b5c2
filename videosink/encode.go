// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package videosink

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"sync"
)

type pngBufferPool sync.Pool

func (p *pngBufferPool) Get() *png.EncoderBuffer {
	buf, _ := (*sync.Pool)(p).Get().(*png.EncoderBuffer)
	return buf
}

func (p *pngBufferPool) Put(buf *png.EncoderBuffer) {
	(*sync.Pool)(p).Put(buf)
}

// encoders hands out one PNG encoder per compression level. All of them
// share a single buffer pool.
type encoders struct {
	mu   sync.Mutex
	pool pngBufferPool
	png  map[png.CompressionLevel]*png.Encoder
}

var shared encoders

func (e *encoders) pngEncoder(level png.CompressionLevel) *png.Encoder {
	e.mu.Lock()
	defer e.mu.Unlock()

	enc := e.png[level]
	if enc == nil {
		if e.png == nil {
			// Almost always a single level is used.
			e.png = make(map[png.CompressionLevel]*png.Encoder, 1)
		}
		enc = &png.Encoder{CompressionLevel: level, BufferPool: &e.pool}
		e.png[level] = enc
	}
	return enc
}

// encode writes img to w as format.
func (d *Display) encode(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case PNG:
		return shared.pngEncoder(d.pngCompression).Encode(w, img)
	case JPEG:
		return jpeg.Encode(w, img, &d.jpegOptions)
	}
	return fmt.Errorf("unhandled image format %s", format)
}

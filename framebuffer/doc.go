// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package framebuffer implements the packed 1 bit per pixel buffer streamed
// to SSD1675 class e-paper controllers.
//
// Rows are stored top to bottom, each row padded to a whole number of bytes.
// Within a byte the leftmost pixel is the most significant bit:
//
//	byte = y*ByteWidth + x/8
//	bit  = 7 - x%8
//
// A set bit is a "marked" pixel. Clear resets every byte to Unmarked.
//
// The buffer is also a draw.Image using the image1bit color model, so the
// standard library and golang.org/x/image can draw into it directly. The
// image1bit.On value corresponds to a marked pixel.
package framebuffer

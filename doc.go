// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package epaper prints ASCII text on a Waveshare 2.13" V2 black and white
// e-paper panel.
//
// waveshare2in13v2 drives the panel controller. framebuffer and glyph hold the
// 1 bit frame and the font, and textscreen lays text out on them. screen2d and
// videosink mirror the frame on a terminal or over HTTP. cmd/epdtext ties
// everything together.
package epaper

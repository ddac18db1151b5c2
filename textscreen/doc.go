// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package textscreen renders ASCII text on an e-paper panel.
//
// Text is laid out with a fixed size glyph table, left to right and top to
// bottom, in portrait or landscape orientation. A line that does not fit
// wraps; text past the last row is dropped. The only hard limit is the
// maximum text length, checked before anything is touched.
//
// A Screen is a single owner of its panel. Render blocks while another
// render is running, TryRender gives up with ErrBusy.
package textscreen

// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package waveshare2in13v2 controls the Waveshare 2.13 inch V2 e-paper
// display (122x250, black and white).
//
// The driver keeps the register protocol as data: the initialization
// program is an ordered list of command and data steps replayed by a single
// executor. Each Dev is one session on one panel and serializes all
// operations behind its own lock.
//
// A stuck busy line never blocks forever when Opts.BusyTimeout is set. The
// wait is then abandoned and the returned BusyResult has Forced set; this is
// not an error.
//
// Datasheets
//
// https://www.waveshare.com/w/upload/d/d5/2.13inch_e-Paper_Specification.pdf
//
// Product page:
//
// 2.13 Inch version 2: https://www.waveshare.com/wiki/2.13inch_e-Paper_HAT
//
package waveshare2in13v2

// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package waveshare2in13v2

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when an operation needs an initialized, awake
	// panel. The transport is not touched.
	ErrNotReady = errors.New("waveshare2in13v2: panel not ready")

	// ErrBufferSize is returned when a frame does not match the panel
	// geometry.
	ErrBufferSize = errors.New("waveshare2in13v2: invalid buffer size")

	// ErrInvalidOpts is returned by New for an unusable configuration.
	ErrInvalidOpts = errors.New("waveshare2in13v2: invalid options")
)

// TransportError reports a failed SPI transfer or GPIO write. The session is
// back in the Uninitialized state afterwards.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("waveshare2in13v2: %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

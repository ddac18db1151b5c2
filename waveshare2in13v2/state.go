// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package waveshare2in13v2

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a panel session.
type State uint32

const (
	// Uninitialized is the state after New, after Close and after any
	// transport failure.
	Uninitialized State = iota
	// Resetting is held while the reset line is toggled.
	Resetting
	// Initializing means the controller was reset and awaits its register
	// program.
	Initializing
	// Ready accepts frame writes and refreshes.
	Ready
	// Busy is held while the controller drives the glass.
	Busy
	// Asleep is deep sleep; only InitFull leaves it.
	Asleep
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Resetting:
		return "resetting"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case Asleep:
		return "asleep"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// BusyResult describes the busy-line waits of one operation.
type BusyResult struct {
	// Polls is the number of poll intervals slept.
	Polls int
	// Waited is the accumulated poll time.
	Waited time.Duration
	// Forced is set when at least one wait hit Opts.BusyTimeout and the
	// line was released in software. The refresh may be incomplete.
	Forced bool
}

func (r BusyResult) merge(o BusyResult) BusyResult {
	return BusyResult{
		Polls:  r.Polls + o.Polls,
		Waited: r.Waited + o.Waited,
		Forced: r.Forced || o.Forced,
	}
}

// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package version holds the release number of the epdtext command.
package version

import "strconv"

// Version is a semantic version number.
type Version struct {
	Major int64
	Minor int64
	Patch int64
}

// String returns the dotted form, e.g. "1.0.0".
func (v *Version) String() string {
	return strconv.FormatInt(v.Major, 10) + "." + strconv.FormatInt(v.Minor, 10) + "." + strconv.FormatInt(v.Patch, 10)
}

// App is the version of the epdtext command.
var App = Version{Major: 1, Minor: 0, Patch: 0}

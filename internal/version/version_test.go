// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package version

import "testing"

func TestString(t *testing.T) {
	for _, tc := range []struct {
		v    Version
		want string
	}{
		{Version{}, "0.0.0"},
		{Version{Major: 1, Minor: 12, Patch: 3}, "1.12.3"},
		{App, "1.0.0"},
	} {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("%#v.String() = %q, want %q", tc.v, got, tc.want)
		}
	}
}

// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version reports the fixturectl release printed by -V.
package version

import (
	"fmt"
	"strings"
)

// Release of fixturectl.  Tagged builds clear PreRelease.
const (
	Major uint = 0
	Minor uint = 3
	Patch uint = 1
)

// Both suffixes may be replaced at link time, for example with
// -ldflags "-X github.com/gandercoin/chainfixture/internal/version.PreRelease=rc1".
var (
	PreRelease    = "pre"
	BuildMetadata = "dev"
)

// String formats the release as MAJOR.MINOR.PATCH[-PRE][+BUILD].  Runes a
// semantic version does not allow in a suffix are dropped from it.
func String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", Major, Minor, Patch)
	if pre := strings.Map(suffixRune(false), PreRelease); pre != "" {
		b.WriteByte('-')
		b.WriteString(pre)
	}
	if build := strings.Map(suffixRune(true), BuildMetadata); build != "" {
		b.WriteByte('+')
		b.WriteString(build)
	}
	return b.String()
}

// suffixRune returns a strings.Map mapping keeping ASCII alphanumerics and
// hyphens.  Dots are kept only in build metadata.
func suffixRune(build bool) func(rune) rune {
	return func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z', r == '-':
			return r
		case r == '.' && build:
			return r
		}
		return -1
	}
}

/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package version tracks the agent's own build version and the range of
// wire protocol versions it speaks, using hashicorp/go-version's semantic
// comparisons the way the corpus's artifact package picks releases.
package version

import (
	"fmt"

	hscvrs "github.com/hashicorp/go-version"
)

// Build is set at link time via -ldflags "-X github.com/tuclient/tuagent/version.Build=...".
// It defaults to a development marker so an unlinked binary still parses as
// a valid (if uninteresting) semantic version.
var Build = "0.0.0-dev"

// Self parses Build into a comparable version, falling back to 0.0.0 if the
// linked value is somehow malformed.
func Self() *hscvrs.Version {
	v, err := hscvrs.NewVersion(Build)
	if err != nil {
		v, _ = hscvrs.NewVersion("0.0.0")
	}
	return v
}

// MinSupportedProtocol and MaxSupportedProtocol bound the wire protocol
// versions this build can speak to a gateway.
var (
	MinSupportedProtocol = mustVersion("1.0.0")
	MaxSupportedProtocol = mustVersion("1.0.0")
)

func mustVersion(s string) *hscvrs.Version {
	v, err := hscvrs.NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// CompatibleWithGateway reports whether gatewayVersion falls within the
// range this build supports.
func CompatibleWithGateway(gatewayVersion string) (bool, error) {
	v, err := hscvrs.NewVersion(gatewayVersion)
	if err != nil {
		return false, fmt.Errorf("parse gateway protocol version %q: %w", gatewayVersion, err)
	}
	return v.GreaterThanOrEqual(MinSupportedProtocol) && v.LessThanOrEqual(MaxSupportedProtocol), nil
}

// String renders the build version; the CLI's --version flag prints it.
func String() string {
	return Self().String()
}

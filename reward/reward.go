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

// Package reward implements Reward Derivation: a pure function from a PI
// vector (paired with its names) to a scalar reward in [-1, 1], selecting
// elements by regular-expression match against PI name and averaging them.
package reward

import (
	"regexp"

	"github.com/tuclient/tuagent/tuerr"
)

// Deriver holds a compiled tuning-goal regex. A Deriver built from an
// empty pattern is a no-op: the agent advertises no tuning goal and no
// reward is derived (SPEC_FULL.md §4.6).
type Deriver struct {
	pattern string
	re      *regexp.Regexp
}

// New compiles pattern. An empty pattern is valid and yields a no-op
// Deriver; Enabled reports false for it.
func New(pattern string) (*Deriver, error) {
	if pattern == "" {
		return &Deriver{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, tuerr.Wrap(tuerr.AgentFatal, err, "compile tuning_goal_regex %q", pattern)
	}
	return &Deriver{pattern: pattern, re: re}, nil
}

// Enabled reports whether this Deriver was built from a non-empty pattern.
func (d *Deriver) Enabled() bool {
	return d != nil && d.re != nil
}

// Derive averages the elements of values whose corresponding name in names
// matches the compiled regex. names and values must be the same length.
// Returns (0, false) when disabled or when nothing matches.
func (d *Deriver) Derive(names []string, values []float64) (float64, bool) {
	if !d.Enabled() || len(names) != len(values) {
		return 0, false
	}

	var sum float64
	var n int
	for i, name := range names {
		if d.re.MatchString(name) {
			sum += values[i]
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

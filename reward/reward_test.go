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

package reward_test

import (
	"math"
	"testing"

	"github.com/tuclient/tuagent/reward"
)

func TestDeriveAveragesMatchingElements(t *testing.T) {
	d, err := reward.New(`^latency/`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := []string{"latency/p50", "latency/p99", "cpu/load"}
	values := []float64{0.2, 0.4, 0.9}

	got, ok := d.Derive(names, values)
	if !ok {
		t.Fatalf("expected a derived reward")
	}
	if math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("expected average 0.3, got %v", got)
	}
}

func TestDeriveIsDisabledForEmptyPattern(t *testing.T) {
	d, err := reward.New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Enabled() {
		t.Fatalf("expected Deriver to be disabled for an empty pattern")
	}
	_, ok := d.Derive([]string{"a"}, []float64{0.5})
	if ok {
		t.Fatalf("expected no reward from a disabled Deriver")
	}
}

func TestDeriveReportsFalseWhenNothingMatches(t *testing.T) {
	d, err := reward.New(`^nope/`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, ok := d.Derive([]string{"a/1"}, []float64{0.1})
	if ok {
		t.Fatalf("expected no match to report ok=false")
	}
}

func TestNewRejectsInvalidRegex(t *testing.T) {
	if _, err := reward.New("("); err == nil {
		t.Fatalf("expected an error for an invalid regex")
	}
}

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

// Package sysload is the reference Getter (SPEC_FULL.md §4.5, §7): it
// reports host load average, CPU percent and memory percent through
// shirou/gopsutil, the library the corpus's process/host inspection code
// reaches for instead of reading /proc by hand.
package sysload

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"

	"github.com/tuclient/tuagent/fanout"
)

// defaultMaxLoad is the 1-minute load average treated as "fully loaded"
// (normalized to +1) absent a more specific per-host baseline; a load of 0
// normalizes to -1, matching the PI Vector invariant that every element
// lies in [-1, 1] (SPEC_FULL.md §3).
const defaultMaxLoad = 8.0

// Getter samples host load/cpu/mem. Its PI names are fixed and reported in
// the order Collect fills them.
type Getter struct {
	prefix  string
	maxLoad float64
}

// New builds a sysload Getter. prefix namespaces the three PI names it
// reports (e.g. "" -> "load1", "host." -> "host.load1"). maxLoad is the
// 1-minute load average normalized to +1; a value <= 0 falls back to
// defaultMaxLoad.
func New(prefix string, maxLoad float64) *Getter {
	if maxLoad <= 0 {
		maxLoad = defaultMaxLoad
	}
	return &Getter{prefix: prefix, maxLoad: maxLoad}
}

// normalizePercent maps a 0-100 percentage onto [-1, 1].
func normalizePercent(pct float64) float64 {
	return clamp(pct/50-1, -1, 1)
}

// normalizeLoad maps a load-average sample onto [-1, 1] against maxLoad.
func normalizeLoad(load, maxLoad float64) float64 {
	if maxLoad <= 0 {
		maxLoad = defaultMaxLoad
	}
	return clamp(load/maxLoad*2-1, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (g *Getter) Start(ctx context.Context) error { return nil }
func (g *Getter) Stop(ctx context.Context) error  { return nil }

func (g *Getter) Names() []string {
	return []string{g.prefix + "load1", g.prefix + "cpu_percent", g.prefix + "mem_percent"}
}

// Collect samples the three metrics. Per the Getter contract's
// transient-vs-fatal distinction, a sampling error on any one of them is
// treated as transient: Collect returns an empty slice and a nil error,
// since a momentary /proc read glitch should not fail the agent.
func (g *Getter) Collect(ctx context.Context, interval time.Duration, requestedTime float64) ([]float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, nil
	}

	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(pct) == 0 {
		return nil, nil
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, nil
	}

	return []float64{
		normalizeLoad(avg.Load1, g.maxLoad),
		normalizePercent(pct[0]),
		normalizePercent(vm.UsedPercent),
	}, nil
}

var _ fanout.Getter = (*Getter)(nil)

func (g *Getter) String() string {
	return fmt.Sprintf("sysload(prefix=%q)", g.prefix)
}

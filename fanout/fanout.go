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

// Package fanout implements the Getter/Setter Fanout: it invokes all
// registered probes per tick, concatenates their outputs in registration
// order, and splits an inbound Action Vector across setters by their
// declared parameter-name-list lengths.
package fanout

import (
	"context"
	"time"

	"github.com/tuclient/tuagent/tuerr"
)

// Getter is the abstract probe contract (SPEC_FULL.md §4.5). Collect is
// lazy and must return an empty slice, not an error, on transient
// unavailability; a genuine error is agent-fatal.
type Getter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Names() []string
	Collect(ctx context.Context, interval time.Duration, requestedTime float64) ([]float64, error)
}

// Setter is the abstract actuator contract.
type Setter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Names() []string
	Action(ctx context.Context, interval time.Duration, values []float64) error
}

// Flusher is an optional Setter extension for file-writing setters: Flush
// materialises any staged writes and runs post-set hooks. Dispatch calls
// Flush once per ACTION on each distinct Flusher (the group-commit
// discipline of SPEC_FULL.md §4.5). Writes are not coordinated across
// setters: two Setters that target the same file each flush it.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Fanout holds the ordered getter and setter registries for one session.
type Fanout struct {
	getters []Getter
	setters []Setter
}

// New builds a Fanout from already-ordered getter/setter registries. The
// order given here is the registration order the spec requires PI/Action
// concatenation to respect.
func New(getters []Getter, setters []Setter) *Fanout {
	return &Fanout{getters: getters, setters: setters}
}

// Start starts every getter and setter in registration order.
func (f *Fanout) Start(ctx context.Context) error {
	for _, g := range f.getters {
		if err := g.Start(ctx); err != nil {
			return tuerr.Wrap(tuerr.AgentFatal, err, "start getter")
		}
	}
	for _, s := range f.setters {
		if err := s.Start(ctx); err != nil {
			return tuerr.Wrap(tuerr.AgentFatal, err, "start setter")
		}
	}
	return nil
}

// Stop stops every getter and setter, collecting the first error but
// attempting to stop all of them regardless.
func (f *Fanout) Stop(ctx context.Context) error {
	var first error
	for _, g := range f.getters {
		if err := g.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	for _, s := range f.setters {
		if err := s.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PINames returns the fully-qualified names of every getter's PIs, in
// registration order.
func (f *Fanout) PINames() []string {
	var out []string
	for _, g := range f.getters {
		out = append(out, g.Names()...)
	}
	return out
}

// ParamNames returns the fully-qualified names of every setter's
// parameters, in registration order.
func (f *Fanout) ParamNames() []string {
	var out []string
	for _, s := range f.setters {
		out = append(out, s.Names()...)
	}
	return out
}

// Collect concatenates every getter's output in registration order
// (testable property 4). A getter returning an empty slice contributes
// nothing and is not an error; if every getter is empty, Collect reports
// empty=true so the caller skips sending a PI frame.
func (f *Fanout) Collect(ctx context.Context, interval time.Duration, requestedTime float64) (values []float64, empty bool, err error) {
	any := false
	for _, g := range f.getters {
		v, cerr := g.Collect(ctx, interval, requestedTime)
		if cerr != nil {
			return nil, false, tuerr.Wrap(tuerr.AgentFatal, cerr, "getter collect")
		}
		if len(v) > 0 {
			any = true
		}
		values = append(values, v...)
	}
	return values, !any, nil
}

// Dispatch splits action across setters by their declared parameter-count
// and invokes Action on each, then Flush on every Flusher exactly once
// (testable property 5).
func (f *Fanout) Dispatch(ctx context.Context, interval time.Duration, action []float64) error {
	offset := 0
	flushed := map[Flusher]bool{}

	for _, s := range f.setters {
		n := len(s.Names())
		if offset+n > len(action) {
			return tuerr.New(tuerr.AgentFatal, "fanout: action vector shorter than declared parameter names", nil)
		}
		slice := action[offset : offset+n]
		offset += n
		if err := s.Action(ctx, interval, slice); err != nil {
			return tuerr.Wrap(tuerr.AgentFatal, err, "setter action")
		}
	}

	for _, s := range f.setters {
		fl, ok := s.(Flusher)
		if !ok || flushed[fl] {
			continue
		}
		flushed[fl] = true
		if err := fl.Flush(ctx); err != nil {
			return tuerr.Wrap(tuerr.AgentFatal, err, "setter flush")
		}
	}
	return nil
}

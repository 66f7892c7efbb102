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

// Package scheduler implements the Tick Scheduler entity: unlike a plain
// periodic ticker, each tick deadline is recomputed from wall-clock time so
// that a paused or overloaded process rejoins the same tick grid instead of
// drifting. The public shape (New/Start/Stop/Restart/IsRunning/Uptime,
// Errors accessors) mirrors the teacher's runner/ticker API.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Func is invoked once per tick. seq is the tick's ordinal number.
type Func func(ctx context.Context, seq uint64) error

// maxSleep bounds every internal sleep so Stop/context-cancellation is
// observed within one second even while waiting on a distant deadline.
const maxSleep = 1 * time.Second

// Scheduler recomputes its next deadline from wall-clock time on every
// iteration rather than accumulating drift off a fixed-period ticker.
type Scheduler struct {
	period time.Duration
	fn     Func

	mu      sync.Mutex
	cancel  context.CancelFunc
	running int32
	started time.Time
	seq     atomic.Uint64

	errMu sync.Mutex
	errs  []error
}

// New builds a Scheduler for the given period. period == 0 selects the
// on-demand mode: the callback fires as fast as the previous call returns,
// driven by a monotonically increasing synthetic counter instead of a
// wall-clock grid (SPEC_FULL.md §4.1, Tick Scheduler, T=0 case).
func New(period time.Duration, fn Func) *Scheduler {
	if period < 0 {
		period = 0
	}
	return &Scheduler{period: period, fn: fn}
}

// Start begins the tick loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx == nil {
		return errNilContext
	}
	if s.cancel != nil {
		s.cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = time.Now()
	atomic.StoreInt32(&s.running, 1)

	go s.loop(runCtx)
	return nil
}

// Stop cancels the tick loop and blocks briefly for it to exit.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&s.running) == 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Restart stops (if running) and starts again, resetting Uptime and the
// tick sequence.
func (s *Scheduler) Restart(ctx context.Context) error {
	_ = s.Stop(ctx)
	s.seq.Store(0)
	return s.Start(ctx)
}

// IsRunning reports whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Uptime is the duration since the last Start, or zero when not running.
func (s *Scheduler) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if atomic.LoadInt32(&s.running) == 0 {
		return 0
	}
	return time.Since(s.started)
}

// ErrorsLast returns the most recent error recorded by the callback, or nil.
func (s *Scheduler) ErrorsLast() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[len(s.errs)-1]
}

// ErrorsList returns every error recorded by the callback since Start.
func (s *Scheduler) ErrorsList() []error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

func (s *Scheduler) recordErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	s.errs = append(s.errs, err)
	s.errMu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer atomic.StoreInt32(&s.running, 0)

	for {
		if ctx.Err() != nil {
			return
		}

		if s.period > 0 {
			if !sleepUntil(ctx, s.nextDeadline()) {
				return
			}
		}

		seq := s.seq.Add(1)
		s.recordErr(s.invoke(ctx, seq))

		if ctx.Err() != nil {
			return
		}
	}
}

// nextDeadline computes floor(now/T+1)*T, the next wall-clock grid line
// strictly after now. If now has fallen behind a previously missed
// deadline (the process was paused or descheduled), this naturally rebases
// onto the next future grid line rather than firing a burst of catch-up
// ticks (SPEC_FULL.md §4.1, back-in-time rebase).
func (s *Scheduler) nextDeadline() time.Time {
	now := time.Now()
	t := s.period
	unix := now.UnixNano()
	n := unix/int64(t) + 1
	return time.Unix(0, n*int64(t))
}

func (s *Scheduler) invoke(ctx context.Context, seq uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, seq)
}

// sleepUntil blocks until deadline or ctx cancellation, never sleeping more
// than maxSleep at a stretch so Stop is observed promptly.
func sleepUntil(ctx context.Context, deadline time.Time) bool {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > maxSleep {
			remaining = maxSleep
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

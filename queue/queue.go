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

// Package queue implements the in-process message fabric: a small bounded
// single-producer/single-consumer queue sitting between the Poller
// goroutine (producer) and the Session State Machine (consumer), so a
// slow consumer applies backpressure to the socket reader instead of
// growing memory without bound.
package queue

import (
	"context"

	"github.com/tuclient/tuagent/protocol"
	"github.com/tuclient/tuagent/tuerr"
)

// Message pairs a decoded frame with the Poller's monotonic arrival
// sequence number.
// Err is set instead of Frame when the Poller must surface a decode
// failure it cannot simply drop (a protocol version mismatch).
type Message struct {
	Frame protocol.Frame
	Seq   uint64
	Err   error
}

// Queue is a bounded channel-backed fabric. nil Queue values are not
// valid; use New.
type Queue struct {
	ch chan Message
}

// New builds a Queue with the given capacity. capacity <= 0 is an error in
// the spec's terms but defaults to 1 here to keep the channel usable.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Message, capacity)}
}

// Push enqueues m, blocking until there is room or ctx is done. Returning
// ctx.Err() lets the Poller apply backpressure without leaking goroutines.
func (q *Queue) Push(ctx context.Context, m Message) error {
	select {
	case q.ch <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues m without blocking, reporting whether it fit.
func (q *Queue) TryPush(m Message) bool {
	select {
	case q.ch <- m:
		return true
	default:
		return false
	}
}

// Pop dequeues the next message, blocking until one is available or ctx is
// done.
func (q *Queue) Pop(ctx context.Context) (Message, error) {
	select {
	case m := <-q.ch:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// TryPop dequeues the next message without blocking, reporting whether one
// was available. Used to drain every pending message before a collection
// (SPEC_FULL.md §4.4 ordering rules).
func (q *Queue) TryPop() (Message, bool) {
	select {
	case m := <-q.ch:
		return m, true
	default:
		return Message{}, false
	}
}

// Len reports the number of messages currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue's fixed capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// ErrFull is returned by callers that choose to treat TryPush's failure as
// an explicit error rather than a drop.
var ErrFull = tuerr.New(tuerr.Transient, "queue: full, message dropped", nil)

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

// Package transport defines the Transport abstraction the Poller drives:
// a single dedicated goroutine owns one outbound connection to the
// gateway. Two backends implement it (transport/tcp, transport/nats);
// the session and fanout layers never import either directly.
package transport

import "context"

// Transport is the outbound link to the gateway. Implementations are not
// required to be safe for concurrent Send calls from multiple goroutines;
// the Poller is the only caller.
type Transport interface {
	// Dial establishes the connection. Calling Dial again after Close
	// re-establishes it.
	Dial(ctx context.Context) error

	// Send writes one already-encoded frame.
	Send(ctx context.Context, frame []byte) error

	// Recv blocks for the next frame or until ctx is done.
	Recv(ctx context.Context) ([]byte, error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}

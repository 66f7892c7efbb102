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

// Package tcp implements transport.Transport over a raw, length-framed
// net.Conn, in the idiom of the teacher's socket/client package: a small
// ConnState enum and a dedicated mutex guarding the live connection rather
// than one per read/write. Frames are read with protocol.ReadFrame.
package tcp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/tuclient/tuagent/protocol"
	"github.com/tuclient/tuagent/tuerr"
)

// ConnState mirrors the small lifecycle enum the teacher's socket package
// uses to describe a client connection.
type ConnState uint8

const (
	StateClosed ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "closed"
	}
}

// readBufferSize matches the teacher socket package's buffer sizing.
const readBufferSize = 32 * 1024

// Config configures the TCP transport.
type Config struct {
	Address        string
	DialTimeout    time.Duration
	KeepAlive      time.Duration
}

// Transport is a raw length-framed TCP client.
type Transport struct {
	cfg Config

	mu    sync.Mutex
	conn  net.Conn
	state ConnState
}

// New builds a TCP transport bound to cfg. Dial is required before use.
func New(cfg Config) *Transport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Transport{cfg: cfg, state: StateClosed}
}

func (t *Transport) Dial(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.state = StateConnecting

	d := net.Dialer{Timeout: t.cfg.DialTimeout, KeepAlive: t.cfg.KeepAlive}
	conn, err := d.DialContext(ctx, "tcp", t.cfg.Address)
	if err != nil {
		t.state = StateClosed
		return tuerr.Wrap(tuerr.Transient, err, "dial tcp %s", t.cfg.Address)
	}

	t.conn = conn
	t.state = StateConnected
	return nil
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return tuerr.New(tuerr.Transient, "tcp transport: send on closed connection", nil)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	}
	if _, err := conn.Write(frame); err != nil {
		return tuerr.Wrap(tuerr.Transient, err, "tcp send")
	}
	return nil
}

func (t *Transport) Recv(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil, tuerr.New(tuerr.Transient, "tcp transport: recv on closed connection", nil)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	}
	return protocol.ReadFrame(conn)
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.state = StateClosed
	return err
}

// State reports the current connection lifecycle state.
func (t *Transport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

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

// Package nats implements transport.Transport on top of nats.go: frames
// are published to cfg.SendSubject and received from a subscription on
// cfg.RecvSubject. This backend is selected when the agent's configured
// protocol is "nats" rather than "tcp" (SPEC_FULL.md §2b).
package nats

import (
	"context"
	"time"

	gonats "github.com/nats-io/nats.go"

	"github.com/tuclient/tuagent/tuerr"
)

// Config configures the nats transport.
type Config struct {
	URL          string
	SendSubject  string
	RecvSubject  string
	ConnectName  string
	DialTimeout  time.Duration
}

// Transport sends/receives frames as opaque byte payloads over NATS
// subjects, using a buffered channel subscription so Recv can honor ctx
// cancellation.
type Transport struct {
	cfg  Config
	conn *gonats.Conn
	sub  *gonats.Subscription
	msgs chan *gonats.Msg
}

// New builds a nats transport bound to cfg. Dial is required before use.
func New(cfg Config) *Transport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Transport{cfg: cfg}
}

func (t *Transport) Dial(ctx context.Context) error {
	opts := []gonats.Option{
		gonats.Name(t.cfg.ConnectName),
		gonats.Timeout(t.cfg.DialTimeout),
		gonats.RetryOnFailedConnect(true),
	}
	conn, err := gonats.Connect(t.cfg.URL, opts...)
	if err != nil {
		return tuerr.Wrap(tuerr.Transient, err, "dial nats %s", t.cfg.URL)
	}

	t.msgs = make(chan *gonats.Msg, 256)
	sub, err := conn.ChanSubscribe(t.cfg.RecvSubject, t.msgs)
	if err != nil {
		conn.Close()
		return tuerr.Wrap(tuerr.Transient, err, "subscribe nats subject %s", t.cfg.RecvSubject)
	}

	t.conn = conn
	t.sub = sub
	return nil
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	if t.conn == nil {
		return tuerr.New(tuerr.Transient, "nats transport: send before dial", nil)
	}
	if err := t.conn.Publish(t.cfg.SendSubject, frame); err != nil {
		return tuerr.Wrap(tuerr.Transient, err, "nats publish")
	}
	return nil
}

func (t *Transport) Recv(ctx context.Context) ([]byte, error) {
	if t.msgs == nil {
		return nil, tuerr.New(tuerr.Transient, "nats transport: recv before dial", nil)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-t.msgs:
		if !ok {
			return nil, tuerr.New(tuerr.Transient, "nats transport: subscription closed", nil)
		}
		return msg.Data, nil
	}
}

func (t *Transport) Close() error {
	if t.sub != nil {
		_ = t.sub.Unsubscribe()
		t.sub = nil
	}
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	return nil
}

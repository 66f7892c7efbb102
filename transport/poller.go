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

package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/tuclient/tuagent/protocol"
	"github.com/tuclient/tuagent/queue"
	"github.com/tuclient/tuagent/tuerr"
)

// Poller is the single task that owns both sockets described in
// SPEC_FULL.md §4.3: the outbound gw Transport (dealer-style, to the
// gateway) and an inbound local command listener (router-style, for
// sibling CLI tools). It is the only writer of gw, and the only reader of
// the local listener's connections.
//
// The original design routes every main-task send through the local
// command socket as a SEND command so that a single task ever touches a
// socket. In Go the same single-owner guarantee is simpler to obtain with
// a channel handoff instead of a loopback socket round trip: Send enqueues
// onto outboundCh, and sendLoop is the only goroutine that ever calls
// gw.Send. The effect — exactly one task owns the wire — is identical.
type Poller struct {
	gw        Transport
	q         *queue.Queue
	localAddr string

	outboundCh chan protocol.Frame
	seq        atomic.Uint64

	mu      sync.Mutex
	ln      net.Listener
	pending map[string]net.Conn
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a Poller over gw (the gateway transport) and q (the inbound
// message fabric). localAddr may be empty to disable the local command
// socket (useful in tests that only exercise the gateway path).
func New(gw Transport, q *queue.Queue, localAddr string) *Poller {
	return &Poller{
		gw:         gw,
		q:          q,
		localAddr:  localAddr,
		outboundCh: make(chan protocol.Frame, 64),
		pending:    make(map[string]net.Conn),
	}
}

// Start dials the gateway, binds the local listener (if configured) and
// spawns the recv/send/accept loops. The loops run until Stop is called
// explicitly; they are deliberately not tied to ctx's lifetime so that a
// caller whose own context is cancelled (e.g. a Session ending) still has
// a live Poller to send a final graceful frame through before tearing it
// down itself.
func (p *Poller) Start(ctx context.Context) error {
	if err := p.gw.Dial(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	if p.localAddr != "" {
		ln, err := net.Listen("tcp", p.localAddr)
		if err != nil {
			cancel()
			return tuerr.Wrap(tuerr.AgentFatal, err, "bind local command socket %s", p.localAddr)
		}
		p.mu.Lock()
		p.ln = ln
		p.mu.Unlock()
		go p.acceptLoop(runCtx)
	}

	go p.recvLoop(runCtx)
	go p.sendLoop(runCtx)

	go func() {
		<-runCtx.Done()
		close(p.done)
	}()

	return nil
}

// Send enqueues frame for delivery to the gateway. This is the only path
// the Session uses to talk to gw; sendLoop is the only goroutine that
// calls gw.Send.
func (p *Poller) Send(ctx context.Context, frame protocol.Frame) error {
	select {
	case p.outboundCh <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Respond writes frame to the pending local requester connection
// identified by requesterID and closes it (the "ephemeral connection,
// used once" pattern of SPEC_FULL.md §4.3).
func (p *Poller) Respond(requesterID string, frame protocol.Frame) error {
	p.mu.Lock()
	conn, ok := p.pending[requesterID]
	if ok {
		delete(p.pending, requesterID)
	}
	p.mu.Unlock()

	if !ok {
		return tuerr.New(tuerr.Transient, "poller: no pending local requester "+requesterID, nil)
	}
	defer conn.Close()

	wire, err := protocol.Encode(frame)
	if err != nil {
		return err
	}
	_, err = conn.Write(wire)
	return err
}

// Stop cancels every loop and releases the sockets. Idempotent.
func (p *Poller) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	ln := p.ln
	p.cancel = nil
	p.ln = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ln != nil {
		_ = ln.Close()
	}
	return p.gw.Close()
}

func (p *Poller) recvLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		body, err := p.gw.Recv(ctx)
		if err != nil {
			return
		}

		frame, err := protocol.Decode(body, protocol.CurrentVersion)
		seq := p.seq.Add(1)
		if err != nil {
			if tuerr.Is(err, tuerr.SessionFatal) {
				_ = p.q.Push(ctx, queue.Message{Seq: seq, Err: err})
			}
			// Transient decode errors are dropped; the Poller does not log them.
			continue
		}
		_ = p.q.Push(ctx, queue.Message{Frame: frame, Seq: seq})
	}
}

func (p *Poller) sendLoop(ctx context.Context) {
	for {
		// Check outboundCh first on every iteration so a frame enqueued
		// just ahead of Stop (a graceful CLIENT_STOP, say) is not lost to
		// a lucky select on ctx.Done() instead.
		select {
		case frame := <-p.outboundCh:
			p.sendOne(frame)
			continue
		default:
		}

		select {
		case frame := <-p.outboundCh:
			p.sendOne(frame)
		case <-ctx.Done():
			p.drainOutbound()
			return
		}
	}
}

func (p *Poller) sendOne(frame protocol.Frame) {
	wire, err := protocol.Encode(frame)
	if err != nil {
		return
	}
	_ = p.gw.Send(context.Background(), wire)
}

// drainOutbound flushes any frame already queued at shutdown time instead
// of dropping it.
func (p *Poller) drainOutbound() {
	for {
		select {
		case frame := <-p.outboundCh:
			p.sendOne(frame)
		default:
			return
		}
	}
}

func (p *Poller) acceptLoop(ctx context.Context) {
	p.mu.Lock()
	ln := p.ln
	p.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go p.handleLocalConn(ctx, conn)
	}
}

func (p *Poller) handleLocalConn(ctx context.Context, conn net.Conn) {
	body, err := protocol.ReadFrame(conn)
	if err != nil {
		_ = conn.Close()
		return
	}
	frame, err := protocol.Decode(body, protocol.CurrentVersion)
	if err != nil {
		_ = conn.Close()
		return
	}

	switch frame.Op {
	case protocol.OpExit:
		_ = conn.Close()
		_ = p.Stop()

	case protocol.OpSend:
		defer conn.Close()
		if len(frame.Payload) == 0 {
			return
		}
		op, ok := frame.Payload[0].(int64)
		if !ok {
			if o, ok2 := frame.Payload[0].(int); ok2 {
				op = int64(o)
			} else {
				return
			}
		}
		_ = p.Send(ctx, protocol.Frame{
			Version: protocol.CurrentVersion,
			Op:      protocol.Op(op),
			Payload: frame.Payload[1:],
		})

	case protocol.OpClientStatus, protocol.OpClusterStatus, protocol.OpStartTuning:
		req, err := protocol.ParseRequesterPayload(frame.Payload)
		if err != nil {
			_ = conn.Close()
			return
		}
		p.mu.Lock()
		p.pending[req.RequesterID] = conn
		p.mu.Unlock()

		seq := p.seq.Add(1)
		_ = p.q.Push(ctx, queue.Message{Frame: frame, Seq: seq})

	default:
		_ = conn.Close()
	}
}

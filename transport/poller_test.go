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

package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tuclient/tuagent/protocol"
	"github.com/tuclient/tuagent/queue"
	"github.com/tuclient/tuagent/transport"
)

func TestTransport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "transport suite")
}

// memTransport is an in-memory Transport stub: Send appends to outbox,
// Recv reads from inbox. It lets Poller tests exercise the recv/send
// loops without a real socket.
type memTransport struct {
	dialed bool
	inbox  chan []byte
	outbox chan []byte
}

func newMemTransport() *memTransport {
	return &memTransport{inbox: make(chan []byte, 16), outbox: make(chan []byte, 16)}
}

func (m *memTransport) Dial(ctx context.Context) error { m.dialed = true; return nil }
func (m *memTransport) Send(ctx context.Context, frame []byte) error {
	select {
	case m.outbox <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
func (m *memTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case b := <-m.inbox:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
func (m *memTransport) Close() error { return nil }

var _ transport.Transport = (*memTransport)(nil)

func findFreeAddr() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

var _ = Describe("Poller", func() {
	It("forwards gateway frames onto the inbound queue", func() {
		gw := newMemTransport()
		q := queue.New(4)
		p := transport.New(gw, q, "")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(p.Start(ctx)).To(Succeed())
		defer p.Stop()
		Expect(gw.dialed).To(BeTrue())

		wire, err := protocol.Encode(protocol.Frame{Version: protocol.CurrentVersion, Op: protocol.OpHeartbeat})
		Expect(err).NotTo(HaveOccurred())
		gw.inbox <- wire

		msg, err := q.Pop(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Frame.Op).To(Equal(protocol.OpHeartbeat))
	})

	It("is the sole writer of outbound frames via Send", func() {
		gw := newMemTransport()
		q := queue.New(4)
		p := transport.New(gw, q, "")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(p.Start(ctx)).To(Succeed())
		defer p.Stop()

		Expect(p.Send(ctx, protocol.Frame{Version: protocol.CurrentVersion, Op: protocol.OpPI})).To(Succeed())

		select {
		case wire := <-gw.outbox:
			f, err := protocol.Decode(wire, protocol.CurrentVersion)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Op).To(Equal(protocol.OpPI))
		case <-time.After(time.Second):
			Fail("timed out waiting for outbound frame")
		}
	})

	It("routes a local CLIENT_STATUS request to the queue and answers via Respond", func() {
		gw := newMemTransport()
		q := queue.New(4)
		addr := findFreeAddr()
		p := transport.New(gw, q, addr)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(p.Start(ctx)).To(Succeed())
		defer p.Stop()

		time.Sleep(20 * time.Millisecond) // let the listener bind

		conn, err := net.Dial("tcp", addr)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		reqPayload := protocol.RequesterPayload{RequesterID: "abc123"}
		wire, err := protocol.Encode(protocol.Frame{
			Version: protocol.CurrentVersion, Op: protocol.OpClientStatus, Payload: reqPayload.ToValues(),
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = conn.Write(wire)
		Expect(err).NotTo(HaveOccurred())

		msg, err := q.Pop(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Frame.Op).To(Equal(protocol.OpClientStatus))

		got, err := protocol.ParseRequesterPayload(msg.Frame.Payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.RequesterID).To(Equal("abc123"))

		Expect(p.Respond("abc123", protocol.Frame{
			Version: protocol.CurrentVersion, Op: protocol.OpClientStatusReply,
		})).To(Succeed())

		body, err := protocol.ReadFrame(conn)
		Expect(err).NotTo(HaveOccurred())
		reply, err := protocol.Decode(body, protocol.CurrentVersion)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Op).To(Equal(protocol.OpClientStatusReply))
	})
})

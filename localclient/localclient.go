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

// Package localclient is the CLI-side half of the local command socket
// (SPEC_FULL.md §4.3/§6): an ephemeral dealer connection, one per request,
// mirroring the "creating an ephemeral dealer connection for that single
// send and destroying it on return" discipline the Poller itself follows.
package localclient

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/tuclient/tuagent/clusterview"
	"github.com/tuclient/tuagent/protocol"
)

// Client dials the local command socket fresh for every call; it holds no
// persistent connection, matching the one-shot-per-request shape of the
// CLI surface.
type Client struct {
	addr    string
	timeout time.Duration
}

// New builds a Client targeting addr (the configured command_socket_address).
func New(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{addr: addr, timeout: timeout}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial command socket %s: %w", c.addr, err)
	}
	return conn, nil
}

// roundTrip writes req and reads exactly one reply frame back.
func (c *Client) roundTrip(ctx context.Context, req protocol.Frame) (protocol.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return protocol.Frame{}, err
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	wire, err := protocol.Encode(req)
	if err != nil {
		return protocol.Frame{}, err
	}
	if _, err := conn.Write(wire); err != nil {
		return protocol.Frame{}, fmt.Errorf("write request: %w", err)
	}

	body, err := protocol.ReadFrame(conn)
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("read reply: %w", err)
	}
	return protocol.Decode(body, protocol.CurrentVersion)
}

// ClientStatusReply is the decoded reply to a client_status request.
type ClientStatusReply struct {
	ID      string
	Cluster string
	Node    string
	Status  string
}

// ClientStatus asks the local agent for its own identity and session state.
func (c *Client) ClientStatus(ctx context.Context) (ClientStatusReply, error) {
	req := protocol.RequesterPayload{RequesterID: uuid.NewString()}
	frame, err := c.roundTrip(ctx, protocol.Frame{
		Version: protocol.CurrentVersion,
		Op:      protocol.OpClientStatus,
		Payload: req.ToValues(),
	})
	if err != nil {
		return ClientStatusReply{}, err
	}
	if frame.Op != protocol.OpClientStatusReply {
		return ClientStatusReply{}, fmt.Errorf("unexpected reply op %s", frame.Op)
	}
	rp, err := protocol.ParseRequesterPayload(frame.Payload)
	if err != nil {
		return ClientStatusReply{}, err
	}
	if len(rp.Rest) < 3 {
		return ClientStatusReply{}, fmt.Errorf("CLIENT_STATUS_REPLY payload too short")
	}
	cluster, _ := rp.Rest[0].(string)
	node, _ := rp.Rest[1].(string)
	status, _ := rp.Rest[2].(string)
	return ClientStatusReply{ID: rp.RequesterID, Cluster: cluster, Node: node, Status: status}, nil
}

// ClusterStatus asks the agent to relay a CLUSTER_STATUS request to its
// gateway and returns the decoded Cluster View once the reply arrives.
func (c *Client) ClusterStatus(ctx context.Context) (clusterview.View, error) {
	req := protocol.RequesterPayload{RequesterID: uuid.NewString()}
	frame, err := c.roundTrip(ctx, protocol.Frame{
		Version: protocol.CurrentVersion,
		Op:      protocol.OpClusterStatus,
		Payload: req.ToValues(),
	})
	if err != nil {
		return clusterview.View{}, err
	}
	if frame.Op != protocol.OpClusterStatusReply {
		return clusterview.View{}, fmt.Errorf("unexpected reply op %s", frame.Op)
	}
	rp, err := protocol.ParseRequesterPayload(frame.Payload)
	if err != nil {
		return clusterview.View{}, err
	}
	return clusterview.Parse(rp.Rest)
}

// StartTuningReply carries the desired-node-count acknowledgement. Per
// SPEC_FULL.md's Open Question (c), the reply sometimes carries four
// elements and sometimes two. Accepted comes from the reply's op code,
// Message is the first element after the requester id when it is a
// string, and Extra holds every element after the requester id.
type StartTuningReply struct {
	Accepted bool
	Message  string
	Extra    []interface{}
}

// StartTuning asks the gateway (via the agent) to resize the cluster to
// desiredNodeCount nodes.
func (c *Client) StartTuning(ctx context.Context, desiredNodeCount int) (StartTuningReply, error) {
	req := protocol.RequesterPayload{
		RequesterID: uuid.NewString(),
		Rest:        []interface{}{int64(desiredNodeCount)},
	}
	frame, err := c.roundTrip(ctx, protocol.Frame{
		Version: protocol.CurrentVersion,
		Op:      protocol.OpStartTuning,
		Payload: req.ToValues(),
	})
	if err != nil {
		return StartTuningReply{}, err
	}

	rp, err := protocol.ParseRequesterPayload(frame.Payload)
	if err != nil {
		return StartTuningReply{}, err
	}
	if frame.Op == protocol.OpStartTuningFailed {
		msg := ""
		if len(rp.Rest) > 0 {
			msg, _ = rp.Rest[0].(string)
		}
		return StartTuningReply{Accepted: false, Message: msg, Extra: rp.Rest}, nil
	}
	msg := ""
	if len(rp.Rest) > 0 {
		msg, _ = rp.Rest[0].(string)
	}
	return StartTuningReply{Accepted: true, Message: msg, Extra: rp.Rest}, nil
}

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

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tuclient/tuagent/fanout"
	"github.com/tuclient/tuagent/identity"
	"github.com/tuclient/tuagent/protocol"
	"github.com/tuclient/tuagent/queue"
	"github.com/tuclient/tuagent/reward"
	"github.com/tuclient/tuagent/tuerr"
)

// Sender is everything the Machine needs from the Transport/Poller layer:
// forwarding a frame to the gateway, and answering a local requester by
// hex id. Declared here, not in transport, so session stays decoupled
// from any particular socket implementation (*transport.Poller satisfies
// it structurally).
type Sender interface {
	Send(ctx context.Context, frame protocol.Frame) error
	Respond(requesterID string, frame protocol.Frame) error
}

// Config resolves the handful of knobs the Machine needs per session.
type Config struct {
	TickLen            time.Duration
	NetworkTimeout     time.Duration
	SendingPIRightAway bool
	ClientStopEnabled  bool

	// TuningGoalRegex is the raw tuning_goal_regex configuration string
	// (the same value reward.New was built from). It is prepended to
	// pi_names[0] in PI_PARAMETER_META unconditionally, even when empty,
	// matching the original agent's tuning_goal_name handling.
	TuningGoalRegex string
}

// Machine is the Session State Machine. One Machine serves exactly one
// handshake-to-teardown session; the Supervisor builds a fresh one on
// every retry.
type Machine struct {
	id     *identity.Identity
	link   Sender
	q      *queue.Queue
	fan    *fanout.Fanout
	reward *reward.Deriver
	cfg    Config

	mu           sync.Mutex
	status       Status
	lastActivity time.Time

	forceCollect bool
	tickCounter  uint64
	nextDeadline time.Time
}

// New builds a Machine. link is typically a *transport.Poller.
func New(id *identity.Identity, link Sender, q *queue.Queue, fan *fanout.Fanout, rew *reward.Deriver, cfg Config) *Machine {
	if cfg.NetworkTimeout <= 0 {
		cfg.NetworkTimeout = 30 * time.Second
	}
	return &Machine{id: id, link: link, q: q, fan: fan, reward: rew, cfg: cfg, status: Offline}
}

// Status returns the current Session Status.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Machine) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Machine) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *Machine) timedOut() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastActivity) > m.cfg.NetworkTimeout
}

// Run drives the Machine from Offline through handshake to steady state,
// returning only when the session ends: nil on a graceful stop, a
// tuerr.RetryTimeout error on network timeout (the Supervisor retries),
// or a tuerr.SessionFatal/AgentFatal error otherwise.
func (m *Machine) Run(ctx context.Context, secret, cluster, node string) error {
	m.setStatus(Offline)
	m.touch()

	if err := m.link.Send(ctx, protocol.Frame{
		Version: protocol.CurrentVersion, Op: protocol.OpKey,
		Payload: protocol.KeyPayload{Secret: secret, Cluster: cluster, Node: node, Tags: m.id.Tags}.ToValues(),
	}); err != nil {
		return tuerr.Wrap(tuerr.Transient, err, "send KEY")
	}
	m.setStatus(Authenticating)

	if err := m.awaitAuthenticated(ctx); err != nil {
		return err
	}

	piNames := append([]string{m.cfg.TuningGoalRegex}, m.fan.PINames()...)
	if err := m.link.Send(ctx, protocol.Frame{
		Version: protocol.CurrentVersion, Op: protocol.OpPIParameterMeta,
		Payload: protocol.MetaPayload{PINames: piNames, ParamNames: m.fan.ParamNames()}.ToValues(),
	}); err != nil {
		return tuerr.Wrap(tuerr.Transient, err, "send PI_PARAMETER_META")
	}
	m.setStatus(UploadingMetadata)

	if err := m.awaitMetadataAck(ctx); err != nil {
		return err
	}

	// Open Question (a): the latest source revision pauses rather than
	// running immediately when sending_pi_right_away is false.
	if m.cfg.SendingPIRightAway {
		m.setStatus(Running)
	} else {
		m.setStatus(Paused)
	}

	return m.steadyState(ctx)
}

func (m *Machine) awaitAuthenticated(ctx context.Context) error {
	for {
		msg, err := m.nextMessage(ctx, m.cfg.NetworkTimeout)
		if err != nil {
			return err
		}
		m.touch()
		switch msg.Frame.Op {
		case protocol.OpOK:
			return nil
		case protocol.OpWrongKey:
			return tuerr.New(tuerr.AgentFatal, "authentication rejected: WRONG_KEY", nil)
		default:
			// Unexpected codes during handshake are ignored;
			// the handshake only advances on OK/WRONG_KEY.
		}
	}
}

func (m *Machine) awaitMetadataAck(ctx context.Context) error {
	for {
		msg, err := m.nextMessage(ctx, m.cfg.NetworkTimeout)
		if err != nil {
			return err
		}
		m.touch()
		switch msg.Frame.Op {
		case protocol.OpOK:
			return nil
		case protocol.OpBadMsg:
			return tuerr.New(tuerr.SessionFatal, "gateway rejected metadata: BAD_MSG", nil)
		}
	}
}

// nextMessage blocks for the next inbound message up to timeout, mapping
// an elapsed timeout to tuerr.RetryTimeout.
func (m *Machine) nextMessage(ctx context.Context, timeout time.Duration) (queue.Message, error) {
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	msg, err := m.q.Pop(deadlineCtx)
	if err != nil {
		if ctx.Err() != nil {
			return queue.Message{}, ctx.Err()
		}
		return queue.Message{}, tuerr.New(tuerr.RetryTimeout, "network timeout waiting for gateway", err)
	}
	if msg.Err != nil {
		return queue.Message{}, msg.Err
	}
	return msg, nil
}

// steadyState runs Running/Paused until the session ends.
func (m *Machine) steadyState(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		waitFor := m.pollInterval()
		pollCtx, cancel := context.WithTimeout(ctx, waitFor)
		msg, err := m.q.Pop(pollCtx)
		cancel()

		if err == nil {
			if msg.Err != nil {
				return msg.Err
			}
			m.touch()
			if res := m.handleMessage(ctx, msg); res != nil {
				return res
			}
			// Drain every other pending message before collecting
			// (SPEC_FULL.md §4.4 ordering rules).
			for {
				next, ok := m.q.TryPop()
				if !ok {
					break
				}
				if next.Err != nil {
					return next.Err
				}
				m.touch()
				if res := m.handleMessage(ctx, next); res != nil {
					return res
				}
			}
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		if m.timedOut() {
			return tuerr.New(tuerr.RetryTimeout, "network timeout: no inbound activity", nil)
		}

		if m.readyToCollect() {
			if err := m.collect(ctx); err != nil {
				return err
			}
		}
	}
}

// pollInterval bounds how long steadyState blocks on the queue before
// re-checking the tick/timeout condition: at most one second, per
// SPEC_FULL.md §4.3/§5.
func (m *Machine) pollInterval() time.Duration {
	const maxPoll = time.Second
	if m.cfg.TickLen <= 0 {
		return maxPoll
	}
	m.ensureDeadline()
	remaining := time.Until(m.nextDeadline)
	if remaining <= 0 {
		return time.Millisecond
	}
	if remaining > maxPoll {
		return maxPoll
	}
	return remaining
}

// ensureDeadline lazily seeds nextDeadline on first use and applies the
// back-in-time policy: if the wall clock has moved backwards by more than
// one tick length since it was last set, the grid is rebased onto now
// instead of waiting for it to catch up (SPEC_FULL.md §4.1).
func (m *Machine) ensureDeadline() {
	now := time.Now()
	if m.nextDeadline.IsZero() || now.Before(m.nextDeadline.Add(-m.cfg.TickLen)) {
		m.nextDeadline = computeGridDeadline(now, m.cfg.TickLen)
	}
}

// computeGridDeadline implements floor(now/T+1)*T, the next wall-clock
// instant strictly after now on the T-second grid.
func computeGridDeadline(now time.Time, t time.Duration) time.Time {
	n := now.UnixNano()/int64(t) + 1
	return time.Unix(0, n*int64(t))
}

func (m *Machine) readyToCollect() bool {
	if m.Status() != Running {
		return false
	}
	if m.cfg.TickLen <= 0 {
		return m.forceCollect
	}
	m.ensureDeadline()
	return !time.Now().Before(m.nextDeadline)
}

func (m *Machine) collect(ctx context.Context) error {
	var requestedTime float64
	if m.cfg.TickLen <= 0 {
		requestedTime = float64(atomic.AddUint64(&m.tickCounter, 1) - 1)
	} else {
		requestedTime = float64(time.Now().Unix())
	}
	m.forceCollect = false
	if m.cfg.TickLen > 0 {
		m.nextDeadline = computeGridDeadline(time.Now(), m.cfg.TickLen)
	}

	values, empty, err := m.fan.Collect(ctx, m.cfg.TickLen, requestedTime)
	if err != nil {
		m.setStatus(GetterError)
		return err
	}
	if empty {
		return nil
	}

	if m.reward.Enabled() {
		if r, ok := m.reward.Derive(m.fan.PINames(), values); ok {
			values = append([]float64{r}, values...)
		}
	}

	return m.link.Send(ctx, protocol.Frame{
		Version: protocol.CurrentVersion, Timestamp: requestedTime, Op: protocol.OpPI,
		Payload: protocol.PIPayload{Values: values}.ToValues(),
	})
}

// handleMessage applies the message-handling rules of SPEC_FULL.md §4.4.
// A non-nil return ends the session.
func (m *Machine) handleMessage(ctx context.Context, msg queue.Message) error {
	switch msg.Frame.Op {
	case protocol.OpPIReceivedOK, protocol.OpHeartbeat:
		return nil

	case protocol.OpAction:
		action, err := protocol.ParseActionPayload(msg.Frame.Payload)
		if err != nil {
			return tuerr.Wrap(tuerr.SessionFatal, err, "malformed ACTION payload")
		}
		if err := m.fan.Dispatch(ctx, m.cfg.TickLen, action.Values); err != nil {
			m.setStatus(SetterError)
			return err
		}
		if err := m.link.Send(ctx, protocol.Frame{
			Version: protocol.CurrentVersion, Op: protocol.OpActionDone,
		}); err != nil {
			return tuerr.Wrap(tuerr.Transient, err, "send ACTION_DONE")
		}
		if m.cfg.TickLen <= 0 {
			m.forceCollect = true
		}
		return nil

	case protocol.OpClientStatus:
		req, err := protocol.ParseRequesterPayload(msg.Frame.Payload)
		if err != nil {
			return nil
		}
		reply := protocol.RequesterPayload{
			RequesterID: req.RequesterID,
			Rest:        []interface{}{m.id.Cluster, m.id.Node, m.Status().String()},
		}
		_ = m.link.Respond(req.RequesterID, protocol.Frame{
			Version: protocol.CurrentVersion, Op: protocol.OpClientStatusReply, Payload: reply.ToValues(),
		})
		return nil

	case protocol.OpClusterStatus, protocol.OpStartTuning:
		// Forward to the gateway; the reply is relayed once it arrives
		// (below) by requester id embedded in the payload.
		return m.link.Send(ctx, msg.Frame)

	case protocol.OpClusterStatusReply:
		req, err := protocol.ParseRequesterPayload(msg.Frame.Payload)
		if err != nil {
			return nil
		}
		return m.link.Respond(req.RequesterID, msg.Frame)

	case protocol.OpStartTuningToClient:
		req, err := protocol.ParseRequesterPayload(msg.Frame.Payload)
		if err == nil {
			_ = m.link.Respond(req.RequesterID, msg.Frame)
		}
		if m.Status() == Paused {
			m.setStatus(Running)
		}
		return nil

	case protocol.OpStartTuningFailed:
		req, err := protocol.ParseRequesterPayload(msg.Frame.Payload)
		if err == nil {
			_ = m.link.Respond(req.RequesterID, msg.Frame)
		}
		return nil

	case protocol.OpBadMsg:
		return tuerr.New(tuerr.SessionFatal, "gateway reported BAD_MSG", nil)

	case protocol.OpNotAuth:
		return tuerr.New(tuerr.SessionFatal, "gateway reported NOT_AUTH, forcing reconnect", nil)

	case protocol.OpBadPIData:
		return tuerr.New(tuerr.AgentFatal, "gateway reported BAD_PI_DATA", nil)

	case protocol.OpDuplicatePIData, protocol.OpClusterNotConfigured:
		return nil

	default:
		return nil
	}
}

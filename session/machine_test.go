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

package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tuclient/tuagent/fanout"
	"github.com/tuclient/tuagent/identity"
	"github.com/tuclient/tuagent/protocol"
	"github.com/tuclient/tuagent/queue"
	"github.com/tuclient/tuagent/reward"
	"github.com/tuclient/tuagent/session"
	"github.com/tuclient/tuagent/tuerr"
)

func TestSession(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "session suite")
}

// recordingSender is a stub session.Sender that records every frame it
// is asked to send, and every local reply it is asked to relay.
type recordingSender struct {
	mu       sync.Mutex
	sent     []protocol.Frame
	replies  map[string][]protocol.Frame
	sendErr  error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{replies: make(map[string][]protocol.Frame)}
}

func (s *recordingSender) Send(ctx context.Context, frame protocol.Frame) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, frame)
	return nil
}

func (s *recordingSender) Respond(requesterID string, frame protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[requesterID] = append(s.replies[requesterID], frame)
	return nil
}

func (s *recordingSender) ops() []protocol.Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Op, len(s.sent))
	for i, f := range s.sent {
		out[i] = f.Op
	}
	return out
}

func (s *recordingSender) last() protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

// stubGetter always reports the same fixed reading for the given names.
type stubGetter struct {
	names  []string
	values []float64
}

func (g *stubGetter) Start(ctx context.Context) error { return nil }
func (g *stubGetter) Stop(ctx context.Context) error  { return nil }
func (g *stubGetter) Names() []string                 { return g.names }
func (g *stubGetter) Collect(ctx context.Context, interval time.Duration, requestedTime float64) ([]float64, error) {
	return g.values, nil
}

// stubSetter records every Action call it receives.
type stubSetter struct {
	mu    sync.Mutex
	names []string
	calls [][]float64
}

func (s *stubSetter) Start(ctx context.Context) error { return nil }
func (s *stubSetter) Stop(ctx context.Context) error  { return nil }
func (s *stubSetter) Names() []string                 { return s.names }
func (s *stubSetter) Action(ctx context.Context, interval time.Duration, values []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]float64(nil), values...)
	s.calls = append(s.calls, cp)
	return nil
}

func (s *stubSetter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestMachine(link *recordingSender, tickLen time.Duration, sendRightAway bool) (*session.Machine, *queue.Queue, *stubGetter, *stubSetter) {
	id, err := identity.New("clusterA", "node1", "s3cr3t", nil)
	Expect(err).NotTo(HaveOccurred())

	g := &stubGetter{names: []string{"cpu/load"}, values: []float64{0.5}}
	s := &stubSetter{names: []string{"pool/size"}}
	fan := fanout.New([]fanout.Getter{g}, []fanout.Setter{s})

	rew, err := reward.New("")
	Expect(err).NotTo(HaveOccurred())

	q := queue.New(8)
	cfg := session.Config{
		TickLen:            tickLen,
		NetworkTimeout:      200 * time.Millisecond,
		SendingPIRightAway: sendRightAway,
	}
	m := session.New(id, link, q, fan, rew, cfg)
	return m, q, g, s
}

// newTestMachineWithGoal is newTestMachine plus a non-empty tuning-goal
// regex, wiring reward.New(goalRegex) through session.Config.TuningGoalRegex
// instead of leaving reward derivation disabled.
func newTestMachineWithGoal(link *recordingSender, goalRegex string) (*session.Machine, *queue.Queue, *stubGetter, *stubSetter) {
	id, err := identity.New("clusterA", "node1", "s3cr3t", nil)
	Expect(err).NotTo(HaveOccurred())

	g := &stubGetter{names: []string{"g"}, values: []float64{0.2}}
	s := &stubSetter{names: []string{"pool/size"}}
	fan := fanout.New([]fanout.Getter{g}, []fanout.Setter{s})

	rew, err := reward.New(goalRegex)
	Expect(err).NotTo(HaveOccurred())

	q := queue.New(8)
	cfg := session.Config{
		NetworkTimeout:     200 * time.Millisecond,
		SendingPIRightAway: true,
		TuningGoalRegex:    goalRegex,
	}
	m := session.New(id, link, q, fan, rew, cfg)
	return m, q, g, s
}

func pushFrame(q *queue.Queue, ctx context.Context, op protocol.Op, payload []interface{}) {
	Expect(q.Push(ctx, queue.Message{Frame: protocol.Frame{
		Version: protocol.CurrentVersion, Op: op, Payload: payload,
	}})).To(Succeed())
}

var _ = Describe("Machine", func() {
	var ctx context.Context
	var cancel context.CancelFunc

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)
	})

	AfterEach(func() {
		cancel()
	})

	It("drives KEY through the handshake into Running when sending_pi_right_away is set", func() {
		link := newRecordingSender()
		m, q, _, _ := newTestMachine(link, 0, true)

		runErr := make(chan error, 1)
		go func() { runErr <- m.Run(ctx, "s3cr3t", "clusterA", "node1") }()

		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.Authenticating))
		pushFrame(q, ctx, protocol.OpOK, nil)

		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.UploadingMetadata))
		pushFrame(q, ctx, protocol.OpOK, nil)

		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.Running))
		Expect(link.ops()).To(Equal([]protocol.Op{protocol.OpKey, protocol.OpPIParameterMeta}))

		cancel()
		Eventually(runErr).Should(Receive())
	})

	It("prepends the tuning-goal name to pi_names and the derived reward to the PI values (S2)", func() {
		link := newRecordingSender()
		m, q, _, _ := newTestMachineWithGoal(link, "g")

		runErr := make(chan error, 1)
		go func() { runErr <- m.Run(ctx, "s3cr3t", "clusterA", "node1") }()

		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.Authenticating))
		pushFrame(q, ctx, protocol.OpOK, nil)

		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.UploadingMetadata))
		pushFrame(q, ctx, protocol.OpOK, nil)

		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.Running))

		link.mu.Lock()
		sent := append([]protocol.Frame(nil), link.sent...)
		link.mu.Unlock()

		var meta protocol.Frame
		for _, f := range sent {
			if f.Op == protocol.OpPIParameterMeta {
				meta = f
			}
		}
		Expect(meta.Op).To(Equal(protocol.OpPIParameterMeta))
		names, ok := meta.Payload[0].([]interface{})
		Expect(ok).To(BeTrue())
		Expect(names).To(HaveLen(2))
		Expect(names[0]).To(Equal("g"))
		Expect(names[1]).To(Equal("g"))

		// Tick length zero: nothing collects until forced by an ACTION.
		action := protocol.ActionPayload{Values: []float64{-0.5}}
		pushFrame(q, ctx, protocol.OpAction, action.ToValues())

		Eventually(func() []protocol.Op { return link.ops() }, 2*time.Second).Should(ContainElement(protocol.OpPI))

		link.mu.Lock()
		sent = append([]protocol.Frame(nil), link.sent...)
		link.mu.Unlock()

		var pi protocol.Frame
		for _, f := range sent {
			if f.Op == protocol.OpPI {
				pi = f
			}
		}
		values, ok := pi.Payload[0].([]interface{})
		Expect(ok).To(BeTrue())
		Expect(values).To(HaveLen(2))
		Expect(values[0]).To(BeNumerically("~", 0.2, 1e-9))
		Expect(values[1]).To(BeNumerically("~", 0.2, 1e-9))

		cancel()
		Eventually(runErr).Should(Receive())
	})

	It("enters Paused instead of Running when sending_pi_right_away is false", func() {
		link := newRecordingSender()
		m, q, _, _ := newTestMachine(link, 0, false)

		runErr := make(chan error, 1)
		go func() { runErr <- m.Run(ctx, "s3cr3t", "clusterA", "node1") }()

		pushFrame(q, ctx, protocol.OpOK, nil)
		pushFrame(q, ctx, protocol.OpOK, nil)

		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.Paused))
		Consistently(func() session.Status { return m.Status() }, 100*time.Millisecond).Should(Equal(session.Paused))

		cancel()
		Eventually(runErr).Should(Receive())
	})

	It("collects exactly once per ACTION when running on-demand (tick length zero)", func() {
		link := newRecordingSender()
		m, q, _, setter := newTestMachine(link, 0, true)

		runErr := make(chan error, 1)
		go func() { runErr <- m.Run(ctx, "s3cr3t", "clusterA", "node1") }()

		pushFrame(q, ctx, protocol.OpOK, nil)
		pushFrame(q, ctx, protocol.OpOK, nil)
		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.Running))

		// No tick length and no ACTION yet: nothing should be collected.
		Consistently(func() []protocol.Op { return link.ops() }, 150*time.Millisecond).ShouldNot(ContainElement(protocol.OpPI))

		action := protocol.ActionPayload{Values: []float64{1.0}}
		pushFrame(q, ctx, protocol.OpAction, action.ToValues())

		Eventually(func() int { return setter.callCount() }, 2*time.Second).Should(Equal(1))
		Eventually(func() []protocol.Op { return link.ops() }, 2*time.Second).Should(ContainElement(protocol.OpActionDone))
		Eventually(func() []protocol.Op { return link.ops() }, 2*time.Second).Should(ContainElement(protocol.OpPI))

		Consistently(func() int {
			count := 0
			for _, op := range link.ops() {
				if op == protocol.OpPI {
					count++
				}
			}
			return count
		}, 150*time.Millisecond).Should(Equal(1))

		cancel()
		Eventually(runErr).Should(Receive())
	})

	It("replies to a CLIENT_STATUS request via Respond", func() {
		link := newRecordingSender()
		m, q, _, _ := newTestMachine(link, 0, true)

		runErr := make(chan error, 1)
		go func() { runErr <- m.Run(ctx, "s3cr3t", "clusterA", "node1") }()

		pushFrame(q, ctx, protocol.OpOK, nil)
		pushFrame(q, ctx, protocol.OpOK, nil)
		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.Running))

		req := protocol.RequesterPayload{RequesterID: "req-1"}
		pushFrame(q, ctx, protocol.OpClientStatus, req.ToValues())

		Eventually(func() []protocol.Frame {
			link.mu.Lock()
			defer link.mu.Unlock()
			return link.replies["req-1"]
		}).Should(HaveLen(1))

		cancel()
		Eventually(runErr).Should(Receive())
	})

	It("returns a RetryTimeout error when the gateway goes quiet past the network timeout", func() {
		link := newRecordingSender()
		m, q, _, _ := newTestMachine(link, 0, true)

		runErr := make(chan error, 1)
		go func() { runErr <- m.Run(ctx, "s3cr3t", "clusterA", "node1") }()

		pushFrame(q, ctx, protocol.OpOK, nil)
		pushFrame(q, ctx, protocol.OpOK, nil)
		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.Running))

		var err error
		Eventually(runErr, 2*time.Second).Should(Receive(&err))
		Expect(tuerr.Is(err, tuerr.RetryTimeout)).To(BeTrue())
	})

	It("treats BAD_MSG as session-fatal and ends the session", func() {
		link := newRecordingSender()
		m, q, _, _ := newTestMachine(link, 0, true)

		runErr := make(chan error, 1)
		go func() { runErr <- m.Run(ctx, "s3cr3t", "clusterA", "node1") }()

		pushFrame(q, ctx, protocol.OpOK, nil)
		pushFrame(q, ctx, protocol.OpOK, nil)
		Eventually(func() session.Status { return m.Status() }).Should(Equal(session.Running))

		pushFrame(q, ctx, protocol.OpBadMsg, nil)

		var err error
		Eventually(runErr).Should(Receive(&err))
		Expect(tuerr.Is(err, tuerr.SessionFatal)).To(BeTrue())
	})

	It("rejects authentication on WRONG_KEY as agent-fatal", func() {
		link := newRecordingSender()
		m, q, _, _ := newTestMachine(link, 0, true)

		runErr := make(chan error, 1)
		go func() { runErr <- m.Run(ctx, "s3cr3t", "clusterA", "node1") }()

		pushFrame(q, ctx, protocol.OpWrongKey, nil)

		var err error
		Eventually(runErr).Should(Receive(&err))
		Expect(tuerr.Is(err, tuerr.AgentFatal)).To(BeTrue())
	})
})

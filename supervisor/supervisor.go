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

// Package supervisor is the outer loop that (re)creates a Poller and a
// Session State Machine across reconnects: on a network timeout it tears
// the pair down and retries, on any other session error it stops. Its
// lifecycle (New/Start/Stop/IsRunning/Uptime/ErrorsLast/ErrorsList)
// mirrors the corpus's runner/startStop shape, generalized to a retrying
// loop rather than a single start/stop function pair.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/tuclient/tuagent/protocol"
	"github.com/tuclient/tuagent/session"
	"github.com/tuclient/tuagent/transport"
	"github.com/tuclient/tuagent/tuerr"
)

// Factory builds one Poller/Machine pair, good for exactly one connection
// attempt. It is called again on every retry so that each attempt
// gets a fresh queue and a Machine starting from Offline.
type Factory func() (*transport.Poller, *session.Machine, error)

// Config resolves the handshake identity and the graceful-stop policy.
type Config struct {
	Secret            string
	Cluster           string
	Node              string
	ClientStopEnabled bool
}

// Supervisor drives Factory in a loop, retrying on tuerr.RetryTimeout and
// stopping on anything else, per spec.md §4.7.
type Supervisor struct {
	factory Factory
	cfg     Config

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	errMu sync.Mutex
	errs  []error
}

// New builds a Supervisor. factory must return a fresh, not-yet-started
// Poller and a fresh Machine on every call.
func New(factory Factory, cfg Config) *Supervisor {
	return &Supervisor{factory: factory, cfg: cfg}
}

// Start launches the retry loop in the background. A second Start call
// stops the previous loop first, matching the corpus runner's restart
// behavior.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	prevCancel := s.cancel
	prevDone := s.done
	s.mu.Unlock()

	if wasRunning && prevCancel != nil {
		prevCancel()
		if prevDone != nil {
			<-prevDone
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.loop(runCtx, done)

	return nil
}

// Stop cancels the running loop, lets it send CLIENT_STOP and tear down
// its current Poller, and joins it.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restart stops then starts the loop.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	return s.Start(ctx)
}

// IsRunning reports whether the retry loop is active.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Uptime reports how long the current (or most recent) loop has been
// running; zero before the first Start.
func (s *Supervisor) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// ErrorsLast returns the most recently recorded error, or nil.
func (s *Supervisor) ErrorsLast() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[len(s.errs)-1]
}

// ErrorsList returns every error recorded across every attempt.
func (s *Supervisor) ErrorsList() []error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

func (s *Supervisor) recordErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	s.errs = append(s.errs, err)
	s.errMu.Unlock()
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		poller, machine, err := s.factory()
		if err != nil {
			s.recordErr(err)
			return
		}
		if err := poller.Start(ctx); err != nil {
			s.recordErr(err)
			return
		}

		runErr := machine.Run(ctx, s.cfg.Secret, s.cfg.Cluster, s.cfg.Node)

		if ctx.Err() != nil && s.cfg.ClientStopEnabled {
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = poller.Send(stopCtx, protocol.Frame{Version: protocol.CurrentVersion, Op: protocol.OpClientStop})
			cancel()
		}
		_ = poller.Stop()

		if runErr == nil {
			return
		}
		if tuerr.Is(runErr, tuerr.RetryTimeout) {
			s.recordErr(runErr)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		s.recordErr(runErr)
		return
	}
}

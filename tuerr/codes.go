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

// Package tuerr implements the agent's typed error taxonomy: Transient,
// SessionFatal, AgentFatal and RetryTimeout, matching the error handling
// design of the session engine. It follows the corpus's classified Error
// interface, scoped down to a Class (queried with IsClass), an optional
// parent reachable through Unwrap, and the file/line where the error was
// built, over the four classes the Supervisor and Session State Machine
// need.
package tuerr

// Class is a coarse error classification the Supervisor and Session State
// Machine switch on to decide propagation.
type Class uint8

const (
	// Unknown is the zero value; never returned deliberately.
	Unknown Class = iota

	// Transient errors are logged and the current operation continues or
	// the connection reconnects: network timeouts, decode failures, a
	// transiently-empty probe, DUPLICATE_PI_DATA, CLUSTER_NOT_CONFIGURED.
	Transient

	// SessionFatal errors end the current session; the Supervisor retries
	// a fresh session: BAD_MSG, NOT_AUTH, a protocol version mismatch.
	SessionFatal

	// AgentFatal errors stop the agent process entirely with a non-zero
	// exit code: WRONG_KEY, BAD_PI_DATA, an uncaught getter/setter panic.
	AgentFatal

	// RetryTimeout is raised when no inbound message has arrived within
	// the configured network timeout; the Supervisor recognises this
	// specific class as "tear down and retry", distinct from the broader
	// SessionFatal class which does not necessarily imply a timeout.
	RetryTimeout
)

// String renders the class for logging.
func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case SessionFatal:
		return "session-fatal"
	case AgentFatal:
		return "agent-fatal"
	case RetryTimeout:
		return "retry-timeout"
	default:
		return "unknown"
	}
}

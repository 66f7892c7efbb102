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

// Package protocol implements the wire codec between agent and gateway:
// a length-framed, cbor-encoded, deflate-compressed array whose first
// three elements are a protocol version, a wall-clock timestamp and an
// operation code, followed by an op-specific payload.
package protocol

// Op is the wire operation code. Values below 100 are agent<->gateway
// codes from SPEC_FULL.md §6; values >=100 are local-only command-socket
// codes exchanged between the command-socket listener and the Poller.
type Op int

const (
	OpHeartbeat             Op = 1
	OpOK                    Op = 2
	OpClientStatus          Op = 3
	OpAction                Op = 4
	OpActionDone            Op = 5
	OpPI                    Op = 6
	OpPIReceivedOK          Op = 7
	OpClientStatusReply     Op = 8
	OpClusterStatus         Op = 9
	OpClusterStatusReply    Op = 10
	OpKey                   Op = 11
	OpPIParameterMeta       Op = 12
	OpClientStop            Op = 13
	OpWrongKey              Op = 20
	OpBadMsg                Op = 21
	OpNotAuth               Op = 22
	OpClusterNotConfigured  Op = 23
	OpStartTuning           Op = 24
	OpStartTuningFailed     Op = 25
	OpStartTuningToClient   Op = 26
	OpBadPIData             Op = 27
	OpDuplicatePIData       Op = 28

	// Local-only command-socket codes, disjoint from the wire op space.
	OpSend Op = 100
	OpExit Op = 101
)

// String renders the op code by name for logging.
func (o Op) String() string {
	switch o {
	case OpHeartbeat:
		return "HEARTBEAT"
	case OpOK:
		return "OK"
	case OpClientStatus:
		return "CLIENT_STATUS"
	case OpAction:
		return "ACTION"
	case OpActionDone:
		return "ACTION_DONE"
	case OpPI:
		return "PI"
	case OpPIReceivedOK:
		return "PI_RECEIVED_OK"
	case OpClientStatusReply:
		return "CLIENT_STATUS_REPLY"
	case OpClusterStatus:
		return "CLUSTER_STATUS"
	case OpClusterStatusReply:
		return "CLUSTER_STATUS_REPLY"
	case OpKey:
		return "KEY"
	case OpPIParameterMeta:
		return "PI_PARAMETER_META"
	case OpClientStop:
		return "CLIENT_STOP"
	case OpWrongKey:
		return "WRONG_KEY"
	case OpBadMsg:
		return "BAD_MSG"
	case OpNotAuth:
		return "NOT_AUTH"
	case OpClusterNotConfigured:
		return "CLUSTER_NOT_CONFIGURED"
	case OpStartTuning:
		return "START_TUNING"
	case OpStartTuningFailed:
		return "START_TUNING_FAILED"
	case OpStartTuningToClient:
		return "START_TUNING_TO_CLIENT"
	case OpBadPIData:
		return "BAD_PI_DATA"
	case OpDuplicatePIData:
		return "DUPLICATE_PI_DATA"
	case OpSend:
		return "SEND"
	case OpExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// IsLocal reports whether op belongs to the local command-socket space.
func (o Op) IsLocal() bool {
	return o >= 100
}

// IsError reports whether op is one of the gateway error codes.
func (o Op) IsError() bool {
	switch o {
	case OpWrongKey, OpBadMsg, OpNotAuth, OpClusterNotConfigured,
		OpStartTuningFailed, OpBadPIData, OpDuplicatePIData:
		return true
	default:
		return false
	}
}

// CurrentVersion is the protocol version this build speaks. A frame whose
// version does not match is a session-fatal error (SPEC_FULL.md §4.2).
const CurrentVersion = 1

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

// Package session implements the Session State Machine: the single
// authoritative consumer of the inbound message queue, driving handshake,
// steady-state collection, pause/resume and teardown.
package session

// Status is the Session Status entity. It is mutated only by the Machine.
type Status uint8

const (
	Offline Status = iota
	Authenticating
	UploadingMetadata
	Running
	Paused
	ConnectionError
	GetterError
	SetterError
)

func (s Status) String() string {
	switch s {
	case Authenticating:
		return "Authenticating"
	case UploadingMetadata:
		return "Uploading-Metadata"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case ConnectionError:
		return "Connection-Error"
	case GetterError:
		return "Getter-Error"
	case SetterError:
		return "Setter-Error"
	default:
		return "Offline"
	}
}

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

package protocol

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/tuclient/tuagent/tuerr"
)

// Frame is the decoded form of a wire message: version, wall-clock
// timestamp, operation code and an op-specific payload, encoded as a cbor
// array (the binary analogue of the "JSON-like array" SPEC_FULL.md §4.2
// describes) before compression.
type Frame struct {
	Version   int
	Timestamp float64
	Op        Op
	Payload   []interface{}
}

// wireTuple is the literal array shape placed on the wire: this keeps the
// cbor encoding a flat heterogeneous array rather than a map, matching the
// "array whose first element is a protocol-version integer..." shape of
// SPEC_FULL.md §4.2 precisely.
type wireTuple []interface{}

// Encode serialises f into a length-prefixed, deflate-compressed cbor frame.
func Encode(f Frame) ([]byte, error) {
	tuple := make(wireTuple, 0, 3+len(f.Payload))
	tuple = append(tuple, f.Version, f.Timestamp, int(f.Op))
	tuple = append(tuple, f.Payload...)

	raw, err := cbor.Marshal(tuple)
	if err != nil {
		return nil, tuerr.Wrap(tuerr.Transient, err, "cbor encode frame op=%s", f.Op)
	}

	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, tuerr.Wrap(tuerr.Transient, err, "build deflate writer")
	}
	if _, err = zw.Write(raw); err != nil {
		return nil, tuerr.Wrap(tuerr.Transient, err, "deflate frame op=%s", f.Op)
	}
	if err = zw.Close(); err != nil {
		return nil, tuerr.Wrap(tuerr.Transient, err, "close deflate writer")
	}

	out := make([]byte, 4+buf.Len())
	binary.BigEndian.PutUint32(out[:4], uint32(buf.Len()))
	copy(out[4:], buf.Bytes())
	return out, nil
}

// Decode reverses Encode. A malformed frame is a Transient error: the
// caller logs and drops it without tearing down the connection. A version
// mismatch against want is SessionFatal (fatal for the current session).
func Decode(body []byte, want int) (Frame, error) {
	zr := flate.NewReader(bytes.NewReader(body))
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return Frame{}, tuerr.Wrap(tuerr.Transient, err, "inflate frame")
	}

	var tuple []interface{}
	if err := cbor.Unmarshal(raw, &tuple); err != nil {
		return Frame{}, tuerr.Wrap(tuerr.Transient, err, "cbor decode frame")
	}
	if len(tuple) < 3 {
		return Frame{}, tuerr.New(tuerr.Transient, fmt.Sprintf("frame too short: %d elements", len(tuple)), nil)
	}

	version, err := asInt(tuple[0])
	if err != nil {
		return Frame{}, tuerr.Wrap(tuerr.Transient, err, "decode version field")
	}
	ts, err := asFloat(tuple[1])
	if err != nil {
		return Frame{}, tuerr.Wrap(tuerr.Transient, err, "decode timestamp field")
	}
	opInt, err := asInt(tuple[2])
	if err != nil {
		return Frame{}, tuerr.Wrap(tuerr.Transient, err, "decode op field")
	}

	if version != want {
		return Frame{}, tuerr.New(tuerr.SessionFatal,
			fmt.Sprintf("protocol version mismatch: got %d, want %d", version, want), nil)
	}

	return Frame{
		Version:   version,
		Timestamp: ts,
		Op:        Op(opInt),
		Payload:   tuple[3:],
	}, nil
}

// ReadFrame reads one length-prefixed frame body from r, without decoding
// it; the caller passes the body to Decode. Returns io.EOF unmodified so
// callers can distinguish a clean disconnect from a read error.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	const maxFrame = 16 * 1024 * 1024
	if n > maxFrame {
		return nil, tuerr.New(tuerr.Transient, fmt.Sprintf("frame length %d exceeds max %d", n, maxFrame), nil)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected type %T for integer field", v)
	}
}

func asFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unexpected type %T for float field", v)
	}
}

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

package logger

import (
	"io"
	"log"

	"github.com/hashicorp/go-hclog"
)

// HCLogAdapter satisfies hclog.Logger by forwarding to a wrapped Logger, so
// a library that takes an hclog.Logger logs into the same sink as every
// other package's logs.
type HCLogAdapter struct {
	l *logger
}

func (h HCLogAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	f := argsToFields(args)
	switch level {
	case hclog.Off, hclog.NoLevel:
		return
	case hclog.Trace, hclog.Debug:
		h.l.Debug(msg, nil, f)
	case hclog.Info:
		h.l.Info(msg, nil, f)
	case hclog.Warn:
		h.l.Warning(msg, nil, f)
	case hclog.Error:
		h.l.Error(msg, nil, f)
	}
}

func (h HCLogAdapter) Trace(msg string, args ...interface{}) { h.l.Debug(msg, nil, argsToFields(args)) }
func (h HCLogAdapter) Debug(msg string, args ...interface{}) { h.l.Debug(msg, nil, argsToFields(args)) }
func (h HCLogAdapter) Info(msg string, args ...interface{})  { h.l.Info(msg, nil, argsToFields(args)) }
func (h HCLogAdapter) Warn(msg string, args ...interface{}) {
	h.l.Warning(msg, nil, argsToFields(args))
}
func (h HCLogAdapter) Error(msg string, args ...interface{}) {
	h.l.Error(msg, nil, argsToFields(args))
}

func (h HCLogAdapter) IsTrace() bool { return h.l.Level() == DebugLevel }
func (h HCLogAdapter) IsDebug() bool { return h.l.Level() >= DebugLevel }
func (h HCLogAdapter) IsInfo() bool  { return h.l.Level() >= InfoLevel }
func (h HCLogAdapter) IsWarn() bool  { return h.l.Level() >= WarnLevel }
func (h HCLogAdapter) IsError() bool { return h.l.Level() >= ErrorLevel }

func (h HCLogAdapter) ImpliedArgs() []interface{} { return nil }
func (h HCLogAdapter) With(args ...interface{}) hclog.Logger {
	return HCLogAdapter{l: h.l.WithFields(argsToFields(args)).(*logger)}
}
func (h HCLogAdapter) Name() string                          { return "tuagent" }
func (h HCLogAdapter) Named(name string) hclog.Logger        { return h }
func (h HCLogAdapter) ResetNamed(name string) hclog.Logger    { return h }
func (h HCLogAdapter) SetLevel(level hclog.Level)             {}
func (h HCLogAdapter) GetLevel() hclog.Level                  { return hclog.Info }
func (h HCLogAdapter) StandardLogger(opt *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(io.Discard, "", 0)
}
func (h HCLogAdapter) StandardWriter(opt *hclog.StandardLoggerOptions) io.Writer {
	return io.Discard
}

func argsToFields(args []interface{}) Fields {
	f := make(Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}

var _ hclog.Logger = HCLogAdapter{}

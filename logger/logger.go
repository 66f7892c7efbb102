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
	"os"

	"github.com/sirupsen/logrus"
)

// Fields attaches structured context to a single log line.
type Fields map[string]interface{}

// Logger is the vocabulary every package logs through: leveled calls that
// take a message, an optional wrapped error, and structured fields.
type Logger interface {
	Debug(msg string, err error, fields Fields)
	Info(msg string, err error, fields Fields)
	Warning(msg string, err error, fields Fields)
	Error(msg string, err error, fields Fields)
	Fatal(msg string, err error, fields Fields)

	SetLevel(lvl Level)
	Level() Level
	WithFields(fields Fields) Logger

	// HCLog and SetSPF13Level let third-party libraries that demand their
	// own logging interface (nats.go's connection logger, viper's
	// jwalterweatherman notepad) be driven by this Logger.
	HCLog() HCLogAdapter
	SetSPF13Level(lvl Level)
}

type logger struct {
	entry *logrus.Entry
	level Level
}

// New builds a Logger writing format ("text" or "json") to out at lvl.
func New(lvl Level, format string, out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}

	base := logrus.New()
	base.SetOutput(out)
	if format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	l := &logger{level: lvl}
	if lvl == NilLevel {
		base.SetOutput(io.Discard)
		base.SetLevel(logrus.PanicLevel + 1)
	} else {
		base.SetLevel(lvl.logrus())
	}
	l.entry = logrus.NewEntry(base)
	return l
}

func (l *logger) log(lvl Level, msg string, err error, fields Fields) {
	if l.level == NilLevel {
		return
	}
	entry := l.entry
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	if err != nil {
		entry = entry.WithError(err)
	}

	switch lvl {
	case PanicLevel:
		entry.Panic(msg)
	case FatalLevel:
		entry.Fatal(msg)
	case ErrorLevel:
		entry.Error(msg)
	case WarnLevel:
		entry.Warn(msg)
	case InfoLevel:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
}

func (l *logger) Debug(msg string, err error, fields Fields)   { l.log(DebugLevel, msg, err, fields) }
func (l *logger) Info(msg string, err error, fields Fields)    { l.log(InfoLevel, msg, err, fields) }
func (l *logger) Warning(msg string, err error, fields Fields) { l.log(WarnLevel, msg, err, fields) }
func (l *logger) Error(msg string, err error, fields Fields)   { l.log(ErrorLevel, msg, err, fields) }
func (l *logger) Fatal(msg string, err error, fields Fields)   { l.log(FatalLevel, msg, err, fields) }

func (l *logger) SetLevel(lvl Level) {
	l.level = lvl
	if lvl == NilLevel {
		l.entry.Logger.SetOutput(io.Discard)
		return
	}
	l.entry.Logger.SetLevel(lvl.logrus())
}

func (l *logger) Level() Level { return l.level }

func (l *logger) WithFields(fields Fields) Logger {
	return &logger{entry: l.entry.WithFields(logrus.Fields(fields)), level: l.level}
}

func (l *logger) HCLog() HCLogAdapter { return HCLogAdapter{l: l} }

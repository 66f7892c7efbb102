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

package tuerr

import (
	"errors"
	"fmt"
	"runtime"
)

// Error extends the standard error with a Class and an optional parent,
// mirroring the corpus's code-classified error hierarchy.
type Error interface {
	error

	// Class returns the error's classification.
	Class() Class

	// IsClass reports whether the error's direct class equals c.
	IsClass(c Class) bool

	// Unwrap returns the parent error, if any, for errors.Is/As support.
	Unwrap() error

	// File and Line report where the error was constructed.
	File() string
	Line() int
}

type tuError struct {
	class  Class
	msg    string
	parent error
	file   string
	line   int
}

// New constructs a classified Error. parent may be nil.
func New(class Class, msg string, parent error) Error {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "unknown", 0
	}
	return &tuError{
		class:  class,
		msg:    msg,
		parent: parent,
		file:   file,
		line:   line,
	}
}

// Wrap is New with a pre-formatted message via fmt.Errorf-style verbs.
func Wrap(class Class, parent error, format string, args ...interface{}) Error {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "unknown", 0
	}
	return &tuError{
		class:  class,
		msg:    fmt.Sprintf(format, args...),
		parent: parent,
		file:   file,
		line:   line,
	}
}

func (e *tuError) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.parent.Error())
	}
	return e.msg
}

func (e *tuError) Class() Class { return e.class }

func (e *tuError) IsClass(c Class) bool { return e.class == c }

func (e *tuError) Unwrap() error { return e.parent }

func (e *tuError) File() string { return e.file }

func (e *tuError) Line() int { return e.line }

// ClassOf extracts the Class of err if it (or one of its wrapped parents)
// is a tuerr.Error; returns Unknown otherwise.
func ClassOf(err error) Class {
	var te Error
	if errors.As(err, &te) {
		return te.Class()
	}
	return Unknown
}

// Is reports whether err carries the given Class anywhere in its chain.
func Is(err error, class Class) bool {
	return ClassOf(err) == class
}

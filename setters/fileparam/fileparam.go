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

// Package fileparam is the reference Setter (SPEC_FULL.md §4.5, §7): it
// applies an ACTION to keys of a key=value configuration file, parsed and
// rewritten with magiconair/properties rather than a hand-rolled line
// scanner, and runs a single post-set reload hook per flush no matter how
// many of its keys an ACTION touched.
package fileparam

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/magiconair/properties"

	"github.com/tuclient/tuagent/fanout"
)

// Setter writes a fixed, ordered list of keys into a properties-style file.
// Writes from Action buffer in memory; Flush (called once per ACTION by the
// owning Fanout, per the group-commit discipline) materialises the file and
// fires ReloadCommand at most once.
type Setter struct {
	path          string
	names         []string
	reloadCommand string

	mu      sync.Mutex
	staged  map[string]float64
	flushed bool
}

// New builds a fileparam Setter over path, governing the given ordered
// parameter names (each becomes a properties key of the same name).
// reloadCommand, if non-empty, is run through a shell after every flush
// that staged at least one write.
func New(path string, names []string, reloadCommand string) *Setter {
	return &Setter{
		path:          path,
		names:         append([]string(nil), names...),
		reloadCommand: reloadCommand,
		staged:        make(map[string]float64),
	}
}

func (s *Setter) Start(ctx context.Context) error { return nil }
func (s *Setter) Stop(ctx context.Context) error  { return nil }

func (s *Setter) Names() []string { return s.names }

// Action stages values against s.names in order; it does not touch disk.
func (s *Setter) Action(ctx context.Context, interval time.Duration, values []float64) error {
	if len(values) != len(s.names) {
		return fmt.Errorf("fileparam: expected %d values, got %d", len(s.names), len(values))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, name := range s.names {
		s.staged[name] = values[i]
	}
	s.flushed = false
	return nil
}

// Flush materialises every staged write into the properties file in one
// pass and runs the reload hook at most once.
func (s *Setter) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.staged) == 0 || s.flushed {
		return nil
	}

	p, err := loadOrNew(s.path)
	if err != nil {
		return err
	}

	for name, val := range s.staged {
		if _, _, err := p.Set(name, strconv.FormatFloat(val, 'f', -1, 64)); err != nil {
			return fmt.Errorf("fileparam: set %s: %w", name, err)
		}
	}

	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return fmt.Errorf("fileparam: encode %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("fileparam: write %s: %w", s.path, err)
	}

	s.staged = make(map[string]float64)
	s.flushed = true

	if s.reloadCommand != "" {
		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", s.reloadCommand)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("fileparam: reload command %q: %w", s.reloadCommand, err)
		}
	}
	return nil
}

func loadOrNew(path string) (*properties.Properties, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return properties.NewProperties(), nil
	}
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("fileparam: load %s: %w", path, err)
	}
	return p, nil
}

var (
	_ fanout.Setter  = (*Setter)(nil)
	_ fanout.Flusher = (*Setter)(nil)
)

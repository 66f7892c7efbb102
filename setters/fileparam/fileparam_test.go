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

package fileparam_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/magiconair/properties"

	"github.com/tuclient/tuagent/setters/fileparam"
)

func TestActionThenFlushWritesAllKeysOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.properties")

	s := fileparam.New(path, []string{"gain", "threshold"}, "")
	ctx := context.Background()

	if err := s.Action(ctx, 0, []float64{1.5, 2.5}); err != nil {
		t.Fatalf("Action: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := p.GetString("gain", ""); got != "1.5" {
		t.Fatalf("gain = %q, want 1.5", got)
	}
	if got := p.GetString("threshold", ""); got != "2.5" {
		t.Fatalf("threshold = %q, want 2.5", got)
	}
}

func TestFlushWithoutActionIsANoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.properties")

	s := fileparam.New(path, []string{"gain"}, "")
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file to be created by an empty flush")
	}
}

func TestFlushRunsReloadCommandOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.properties")
	marker := filepath.Join(dir, "reloaded")

	s := fileparam.New(path, []string{"gain"}, "touch "+marker)
	ctx := context.Background()

	if err := s.Action(ctx, 0, []float64{1}); err != nil {
		t.Fatalf("Action: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected reload marker to be created: %v", err)
	}

	if err := os.Remove(marker); err != nil {
		t.Fatalf("remove marker: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("expected reload hook not to re-fire on an unchanged flush")
	}
}

func TestActionRejectsWrongArity(t *testing.T) {
	s := fileparam.New(filepath.Join(t.TempDir(), "x.properties"), []string{"gain", "threshold"}, "")
	if err := s.Action(context.Background(), 0, []float64{1}); err == nil {
		t.Fatalf("expected an arity error")
	}
}

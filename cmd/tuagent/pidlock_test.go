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

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tuclient/tuagent/config"
)

func TestPidLockPathIsStableAndNamespaced(t *testing.T) {
	a := pidLockPath(config.Config{ClusterName: "clusterA", NodeName: "node1"})
	b := pidLockPath(config.Config{ClusterName: "clusterA", NodeName: "node2"})
	if a == b {
		t.Fatalf("expected distinct paths for distinct nodes, got %q for both", a)
	}
	if filepath.Dir(a) != os.TempDir() {
		t.Fatalf("expected lock file under os.TempDir(), got %q", a)
	}
}

func TestAcquirePIDLockRejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuagent-test.pid")

	lock, err := acquirePIDLock(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer lock.release()

	_, err = acquirePIDLock(path)
	if !errors.Is(err, errPIDLockHeld) {
		t.Fatalf("expected errPIDLockHeld, got %v", err)
	}
}

func TestAcquirePIDLockReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuagent-test.pid")

	if err := os.WriteFile(path, []byte("999999999\n"), 0o644); err != nil {
		t.Fatalf("seed stale lock: %v", err)
	}

	lock, err := acquirePIDLock(path)
	if err != nil {
		t.Fatalf("expected stale lock to be reclaimed, got %v", err)
	}
	lock.release()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed after release, stat err=%v", err)
	}
}

func TestNewRootCmdRegistersAllSubcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{
		"run":            false,
		"client_status":  false,
		"cluster_status": false,
		"start_tuning":   false,
		"status":         false,
	}
	for _, c := range root.Commands() {
		name := c.Name()
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}

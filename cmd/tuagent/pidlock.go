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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/tuclient/tuagent/config"
)

// errPIDLockHeld is returned verbatim (via errors.Is) when acquirePIDLock
// fails specifically because another live process holds the lock, so
// callers can tell that case apart from an unrelated filesystem error.
var errPIDLockHeld = errors.New("pid lock held by another instance")

// pidLock guards against two `run` daemons sharing one node/cluster name
// and command socket from clobbering each other's local command socket
// bind. The lock file stays on disk until release removes it; a file
// left behind by a process that exited without releasing it is reclaimed
// by the next start once its recorded pid is no longer alive.
type pidLock struct {
	path string
	file *os.File
}

// pidLockPath derives a lock file path from the node/cluster naming so
// two distinct agents on the same host never collide, while two `run`
// invocations for the *same* agent do.
func pidLockPath(cfg config.Config) string {
	name := fmt.Sprintf("tuagent-%s-%s.pid", cfg.ClusterName, cfg.NodeName)
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	return filepath.Join(os.TempDir(), name)
}

// acquirePIDLock creates path exclusively, failing if another live process
// already holds it. There is no flock-style advisory-lock library anywhere
// in the dependency pack (grepped for it before writing this), so this
// leans on O_EXCL's atomicity directly rather than reaching for a
// standard-library-only substitute dressed up as a third-party one.
func acquirePIDLock(path string) (*pidLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create pid lock %s: %w", path, err)
		}
		if !pidLockHeldByLiveProcess(path) {
			if rmErr := os.Remove(path); rmErr != nil {
				return nil, fmt.Errorf("remove stale pid lock %s: %w", path, rmErr)
			}
			return acquirePIDLock(path)
		}
		return nil, fmt.Errorf("%s: %w", path, errPIDLockHeld)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write pid lock %s: %w", path, err)
	}
	return &pidLock{path: path, file: f}, nil
}

// pidLockHeldByLiveProcess reports whether the pid recorded in path still
// names a running process, so a lock file left behind by a killed agent
// doesn't permanently block restarts.
func pidLockHeldByLiveProcess(path string) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (l *pidLock) release() {
	if l == nil {
		return
	}
	_ = l.file.Close()
	_ = os.Remove(l.path)
}

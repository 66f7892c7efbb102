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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuclient/tuagent/config"
	"github.com/tuclient/tuagent/version"
)

var cfgPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "tuagent",
		Short:   "Per-node client agent for the auto-tuning platform",
		Version: version.String(),
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to tuagent.yaml (default: ./tuagent.yaml, ~/.tuagent/tuagent.yaml or /etc/tuagent/tuagent.yaml)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newClientStatusCmd())
	root.AddCommand(newClusterStatusCmd())
	root.AddCommand(newStartTuningCmd())
	root.AddCommand(newStatusWatchCmd())
	return root
}

func loadConfig() (config.Config, error) {
	loader, err := config.NewLoader(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	return loader.Load()
}

func exitWithCode(err error, code int) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "tuagent:", err)
	}
	os.Exit(code)
}

const defaultCommandTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitWithCode(err, 1)
	}
}

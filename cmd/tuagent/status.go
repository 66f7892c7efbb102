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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tuclient/tuagent/localclient"
	"github.com/tuclient/tuagent/scheduler"
)

func newClientStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "client_status",
		Short: "Print this agent's own identity and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				exitWithCode(err, exitBadConfig)
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultCommandTimeout)
			defer cancel()

			reply, err := localclient.New(cfg.CommandSocketAddress, defaultCommandTimeout).ClientStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("id=%s cluster=%s node=%s status=%s\n", reply.ID, reply.Cluster, reply.Node, reply.Status)
			return nil
		},
	}
}

func newClusterStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cluster_status",
		Short: "Print the cluster-wide status relayed from the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				exitWithCode(err, exitBadConfig)
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultCommandTimeout)
			defer cancel()

			view, err := localclient.New(cfg.CommandSocketAddress, defaultCommandTimeout).ClusterStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("cluster=%s status=%s\n", view.Cluster, view.Status)
			for _, n := range view.Nodes {
				fmt.Printf("  %s\t%s\t%s\n", n.ID, n.Name, n.Status)
			}
			return nil
		},
	}
}

func newStartTuningCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start_tuning <desired_node_count>",
		Short: "Ask the gateway to resize the cluster to the given node count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
				return fmt.Errorf("desired_node_count must be an integer: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				exitWithCode(err, exitBadConfig)
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultCommandTimeout)
			defer cancel()

			reply, err := localclient.New(cfg.CommandSocketAddress, defaultCommandTimeout).StartTuning(ctx, n)
			if err != nil {
				return err
			}
			if !reply.Accepted {
				color.New(color.FgRed).Fprintf(os.Stderr, "start_tuning rejected: %s\n", reply.Message)
				os.Exit(1)
			}
			color.New(color.FgGreen).Printf("start_tuning accepted: %s\n", reply.Message)
			return nil
		},
	}
}

func newStatusWatchCmd() *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print client_status once, or continuously with --watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				exitWithCode(err, exitBadConfig)
				return nil
			}
			client := localclient.New(cfg.CommandSocketAddress, defaultCommandTimeout)

			if !watch {
				ctx, cancel := context.WithTimeout(cmd.Context(), defaultCommandTimeout)
				defer cancel()
				reply, err := client.ClientStatus(ctx)
				if err != nil {
					return err
				}
				printStatusLine(reply.Cluster, reply.Node, reply.Status)
				return nil
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			updates := make(chan statusMsg, 1)
			sch := scheduler.New(interval, func(tickCtx context.Context, seq uint64) error {
				reply, err := client.ClientStatus(tickCtx)
				if err != nil {
					updates <- statusMsg{err: err}
					return nil
				}
				updates <- statusMsg{cluster: reply.Cluster, node: reply.Node, status: reply.Status}
				return nil
			})
			if err := sch.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = sch.Stop(context.Background()) }()

			_, err = tea.NewProgram(newStatusWatchModel(updates, cancel)).Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "poll and print status continuously until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "polling interval when --watch is set")
	return cmd
}

func printStatusLine(cluster, node, status string) {
	fmt.Printf("%s  %s/%s  ", time.Now().Format(time.RFC3339), cluster, node)
	color.New(statusColorFor(status)).Println(status)
}

// statusMsg is the bubbletea message carrying one scheduler.Scheduler tick's
// outcome into the TUI's Update loop.
type statusMsg struct {
	cluster, node, status string
	err                   error
}

// statusWatchModel is a tea.Model in the same shape as the corpus's
// cobra/ui prompt model (Init/Update/View, color via fatih/color's
// SprintFunc), fed by a channel instead of direct stdin so the polling
// scheduler and the render loop stay on separate goroutines.
type statusWatchModel struct {
	updates <-chan statusMsg
	cancel  context.CancelFunc

	last statusMsg
	seen bool
}

func newStatusWatchModel(updates <-chan statusMsg, cancel context.CancelFunc) statusWatchModel {
	return statusWatchModel{updates: updates, cancel: cancel}
}

func (m statusWatchModel) Init() tea.Cmd {
	return waitForStatus(m.updates)
}

func waitForStatus(updates <-chan statusMsg) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m statusWatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.last = msg
		m.seen = true
		return m, waitForStatus(m.updates)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancel()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m statusWatchModel) View() string {
	quit := color.New(color.FgHiBlack).Sprint("press q to quit")
	if !m.seen {
		return fmt.Sprintf("waiting for client_status...\n%s\n", quit)
	}
	if m.last.err != nil {
		return fmt.Sprintf("%s\n%s\n", color.New(color.FgRed).Sprintf("client_status: %v", m.last.err), quit)
	}
	line := color.New(statusColorFor(m.last.status)).Sprintf("%s/%s  %s", m.last.cluster, m.last.node, m.last.status)
	return fmt.Sprintf("%s\n%s\n", line, quit)
}

func statusColorFor(status string) color.Attribute {
	switch status {
	case "Running":
		return color.FgGreen
	case "Paused":
		return color.FgYellow
	default:
		return color.FgRed
	}
}

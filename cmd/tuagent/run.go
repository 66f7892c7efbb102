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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuclient/tuagent/config"
	"github.com/tuclient/tuagent/fanout"
	"github.com/tuclient/tuagent/getters/sysload"
	"github.com/tuclient/tuagent/identity"
	"github.com/tuclient/tuagent/logger"
	"github.com/tuclient/tuagent/metrics"
	"github.com/tuclient/tuagent/queue"
	"github.com/tuclient/tuagent/reward"
	"github.com/tuclient/tuagent/session"
	"github.com/tuclient/tuagent/setters/fileparam"
	"github.com/tuclient/tuagent/supervisor"
	"github.com/tuclient/tuagent/transport"
	"github.com/tuclient/tuagent/transport/nats"
	"github.com/tuclient/tuagent/transport/tcp"
)

// Exit codes from SPEC_FULL.md §6: 0 clean shutdown, 1 fatal init error,
// 2 missing/invalid configuration, 255 another instance already holds the
// pid lock.
const (
	exitOK             = 0
	exitFatalInit      = 1
	exitBadConfig      = 2
	exitAlreadyRunning = 255
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent daemon: connect, authenticate, and serve ticks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				exitWithCode(err, exitBadConfig)
				return nil
			}

			lock, err := acquirePIDLock(pidLockPath(cfg))
			if err != nil {
				if errors.Is(err, errPIDLockHeld) {
					exitWithCode(err, exitAlreadyRunning)
				} else {
					exitWithCode(err, exitFatalInit)
				}
				return nil
			}
			defer lock.release()

			if err := runDaemon(cmd.Context(), cfg); err != nil {
				exitWithCode(err, exitFatalInit)
				return nil
			}
			return nil
		},
	}
}

func runDaemon(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogFormat, os.Stderr)
	log.SetSPF13Level(logger.ParseLevel(cfg.LogLevel))

	coll := metrics.New()
	if cfg.MetricsAddress != "" {
		go func() {
			if err := coll.Serve(ctx, cfg.MetricsAddress); err != nil {
				log.Warning("metrics server stopped", err, nil)
			}
		}()
	}

	id, err := identity.New(cfg.ClusterName, cfg.NodeName, cfg.APISecretKey, cfg.Tags)
	if err != nil {
		return fmt.Errorf("build identity: %w", err)
	}
	log.Info("agent starting", nil, logger.Fields{
		"id": id.Hex(), "cluster": cfg.ClusterName, "node": cfg.NodeName,
	})

	rew, err := reward.New(cfg.TuningGoalRegex)
	if err != nil {
		return err
	}

	fan := buildFanout(cfg)

	tickLen := time.Duration(cfg.TickLen) * time.Second
	netTimeout := time.Duration(cfg.NetworkTimeout) * time.Second

	factory := func() (*transport.Poller, *session.Machine, error) {
		gw, err := buildTransport(cfg)
		if err != nil {
			return nil, nil, err
		}
		q := queue.New(64)
		poller := transport.New(gw, q, cfg.CommandSocketAddress)
		machine := session.New(id, poller, q, fan, rew, session.Config{
			TickLen:            tickLen,
			NetworkTimeout:     netTimeout,
			SendingPIRightAway: true,
			ClientStopEnabled:  cfg.ClientStopEnabled,
			TuningGoalRegex:    cfg.TuningGoalRegex,
		})
		return poller, machine, nil
	}

	sup := supervisor.New(factory, supervisor.Config{
		Secret:            cfg.APISecretKey,
		Cluster:           cfg.ClusterName,
		Node:              cfg.NodeName,
		ClientStopEnabled: cfg.ClientStopEnabled,
	})

	if err := fan.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = fan.Stop(context.Background()) }()

	if err := sup.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("agent stopping", nil, nil)
	return sup.Stop(context.Background())
}

// buildTransport selects the gateway Transport backend named by
// cfg.Protocol ("tcp" or "nats"), the only two values config.Validate
// accepts.
func buildTransport(cfg config.Config) (transport.Transport, error) {
	switch cfg.Protocol {
	case "nats":
		return nats.New(nats.Config{
			URL:         cfg.GatewayAddress,
			SendSubject: fmt.Sprintf("tuagent.%s.out", cfg.NodeName),
			RecvSubject: fmt.Sprintf("tuagent.%s.in", cfg.NodeName),
			ConnectName: cfg.NodeName,
		}), nil
	default:
		return tcp.New(tcp.Config{Address: cfg.GatewayAddress}), nil
	}
}

// buildFanout wires the reference getter/setter implementations named by
// cfg.GetterModule/cfg.SetterModule. Additional modules can be added here
// without changing the Session State Machine, which only depends on the
// fanout.Getter/Setter contracts.
func buildFanout(cfg config.Config) *fanout.Fanout {
	var getters []fanout.Getter
	for _, name := range splitModules(cfg.GetterModule) {
		switch name {
		case "sysload":
			getters = append(getters, sysload.New(cfg.SysLoad.Prefix, cfg.SysLoad.MaxLoad))
		}
	}

	var setters []fanout.Setter
	for _, name := range splitModules(cfg.SetterModule) {
		switch name {
		case "fileparam":
			setters = append(setters, fileparam.New(cfg.FileParam.Path, cfg.FileParam.ParamNames, cfg.FileParam.ReloadCommand))
		}
	}

	return fanout.New(getters, setters)
}

func splitModules(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

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

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tuclient/tuagent/config"
)

func validConfig() config.Config {
	return config.Config{
		NodeName:       "node1",
		ClusterName:    "clusterA",
		APISecretKey:   "s3cr3t",
		GatewayAddress: "tcp://gateway:9000",
		Protocol:       "tcp",
		NetworkTimeout: 30,
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	cfg := validConfig()
	cfg.NodeName = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a validation error for a missing node_name")
	}
}

func TestValidateRejectsUnknownProtocol(t *testing.T) {
	cfg := validConfig()
	cfg.Protocol = "udp"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a validation error for an unsupported protocol")
	}
}

func TestValidateRejectsNonPositiveNetworkTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.NetworkTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a validation error for a zero network_timeout")
	}
}

func TestLoaderLoadsAndDefaultsAFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuagent.yaml")
	body := "node_name: node1\n" +
		"cluster_name: clusterA\n" +
		"api_secret_key: s3cr3t\n" +
		"gateway_address: \"tcp://gateway:9000\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	loader, err := config.NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Protocol != "tcp" {
		t.Fatalf("expected default protocol tcp, got %q", cfg.Protocol)
	}
	if cfg.NetworkTimeout != 30 {
		t.Fatalf("expected default network_timeout 30, got %d", cfg.NetworkTimeout)
	}
	if cfg.CommandSocketAddress != "127.0.0.1:7778" {
		t.Fatalf("expected default command socket address, got %q", cfg.CommandSocketAddress)
	}
	if cfg.SysLoad.MaxLoad != 8.0 {
		t.Fatalf("expected default sysload.max_load 8.0, got %v", cfg.SysLoad.MaxLoad)
	}
	if loader.ConfigFileUsed() != path {
		t.Fatalf("expected config file used %q, got %q", path, loader.ConfigFileUsed())
	}
}

func TestLoaderWatchReportsReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuagent.yaml")
	body := "node_name: node1\n" +
		"cluster_name: clusterA\n" +
		"api_secret_key: s3cr3t\n" +
		"gateway_address: \"tcp://gateway:9000\"\n" +
		"tick_len: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	loader, err := config.NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	changed := make(chan config.Config, 1)
	loader.Watch(func(cfg config.Config) { changed <- cfg }, func(err error) { t.Errorf("unexpected watch error: %v", err) })

	updated := body + "tick_len: 10\n"
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite temp config: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.TickLen != 10 {
			t.Fatalf("expected reloaded tick_len 10, got %d", cfg.TickLen)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for config reload notification")
	}
}

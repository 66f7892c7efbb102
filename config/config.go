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

// Package config resolves the agent's configuration keys (SPEC_FULL.md
// §6): node/cluster naming, transport selection, tick/timeout knobs, and
// the getter/setter subkeys, loaded and watched with viper the way the
// corpus's config-bearing packages (mailer, ftpclient, certificates) shape
// a validated struct.
package config

import (
	"fmt"

	libval "github.com/go-playground/validator/v10"
)

// FileParamConfig configures the reference fileparam Setter.
type FileParamConfig struct {
	Path          string   `mapstructure:"path" validate:"required"`
	ParamNames    []string `mapstructure:"param_names"`
	ReloadCommand string   `mapstructure:"reload_command"`
}

// SysLoadConfig configures the reference sysload Getter.
type SysLoadConfig struct {
	Prefix  string  `mapstructure:"prefix"`
	MaxLoad float64 `mapstructure:"max_load" validate:"gte=0"`
}

// Config is the fully resolved configuration the core is instantiated
// with (SPEC_FULL.md §6's configuration-keys list, plus the ambient
// additions: metrics_address, log_level, log_format, reload_command).
type Config struct {
	NodeName             string            `mapstructure:"node_name" validate:"required"`
	ClusterName          string            `mapstructure:"cluster_name" validate:"required"`
	APISecretKey         string            `mapstructure:"api_secret_key" validate:"required"`
	GatewayAddress       string            `mapstructure:"gateway_address" validate:"required"`
	CommandSocketAddress string            `mapstructure:"command_socket_address"`
	Protocol             string            `mapstructure:"protocol" validate:"required,oneof=tcp nats"`
	GetterModule         string            `mapstructure:"getter_module"`
	SetterModule         string            `mapstructure:"setter_module"`
	TickLen              int               `mapstructure:"tick_len" validate:"gte=0"`
	NetworkTimeout       int               `mapstructure:"network_timeout" validate:"gt=0"`
	TuningGoalRegex      string            `mapstructure:"tuning_goal_regex"`
	Tags                 map[string]string `mapstructure:"tags"`
	MetricsAddress       string            `mapstructure:"metrics_address"`
	LogLevel             string            `mapstructure:"log_level"`
	LogFormat            string            `mapstructure:"log_format"`
	ClientStopEnabled    bool              `mapstructure:"client_stop_enabled"`

	FileParam FileParamConfig `mapstructure:"fileparam"`
	SysLoad   SysLoadConfig   `mapstructure:"sysload"`
}

// Defaults returns the baseline values applied before a config file or
// environment overrides them.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"command_socket_address": "127.0.0.1:7778",
		"protocol":               "tcp",
		"tick_len":               0,
		"network_timeout":        30,
		"log_level":              "info",
		"log_format":             "text",
		"client_stop_enabled":    true,
		"sysload.max_load":       8.0,
	}
}

// Validate checks the struct tags via go-playground/validator, the same
// library the corpus's mailer/ftpclient/certificates configs use.
func (c Config) Validate() error {
	if err := libval.New().Struct(c); err != nil {
		if ve, ok := err.(libval.ValidationErrors); ok {
			msg := "invalid configuration:"
			for _, fe := range ve {
				msg += fmt.Sprintf(" %s failed constraint %q;", fe.Namespace(), fe.ActualTag())
			}
			return fmt.Errorf("%s", msg)
		}
		return err
	}
	return nil
}

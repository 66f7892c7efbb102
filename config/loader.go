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

package config

import (
	"fmt"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader resolves a Config from a file path (or the default search path)
// and can watch that file for changes, the way the corpus layers
// viper.WatchConfig/OnConfigChange over a plain Unmarshal rather than
// rolling its own fsnotify watcher.
type Loader struct {
	v *viper.Viper
}

// NewLoader builds a Loader with the default search path: the given path
// if non-empty, otherwise ./tuagent.yaml, ~/.tuagent/tuagent.yaml and
// /etc/tuagent/tuagent.yaml.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	for key, val := range Defaults() {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tuagent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tuagent"))
		}
		v.AddConfigPath("/etc/tuagent")
	}

	v.SetEnvPrefix("TUAGENT")
	v.AutomaticEnv()

	return &Loader{v: v}, nil
}

// Load reads the config file, unmarshals it into a Config and validates
// it before returning.
func (l *Loader) Load() (Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch arms viper's file watcher and invokes onChange with the freshly
// reloaded, re-validated Config whenever the underlying file changes.
// Decode or validation failures are reported through onErr instead of
// replacing the last-known-good Config; onErr may be nil.
func (l *Loader) Watch(onChange func(Config), onErr func(error)) {
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := l.v.Unmarshal(&cfg); err != nil {
			if onErr != nil {
				onErr(fmt.Errorf("decode config: %w", err))
			}
			return
		}
		if err := cfg.Validate(); err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// ConfigFileUsed returns the path viper resolved the configuration from.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

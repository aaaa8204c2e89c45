// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/mesongpio/platform"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// loadConfig builds the configuration from, in decreasing priority,
// command line flags, AMLGPIO_ environment variables, the config file,
// and the defaults.
func loadConfig(cmd *cobra.Command) *config.Config {
	defaultConfig := map[string]interface{}{
		"loglevel": "warn",
		"devices":  "",
		"irqbase":  32,
	}
	flagConfig := map[string]interface{}{}
	if cmd.Flags().Changed("log-level") {
		flagConfig["loglevel"] = rootOpts.LogLevel
	}
	if cmd.Flags().Changed("devices") {
		flagConfig["devices"] = rootOpts.Devices
	}
	if cmd.Flags().Changed("config-file") {
		flagConfig["config.file"] = rootOpts.ConfigFile
	}
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		dict.New(dict.WithMap(flagConfig)),
		env.New(env.WithEnvPrefix("AMLGPIO_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "amlgpio.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.MustGet("loglevel").String())); err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	return zc.Build()
}

// loadDevices returns the devices described by the configured devices
// file, or the default m8b device if there is none.
func loadDevices(cfg *config.Config) ([]*platform.Device, error) {
	path := cfg.MustGet("devices").String()
	if path == "" {
		return []*platform.Device{platform.DefaultDevice()}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return platform.LoadDevices(f)
}

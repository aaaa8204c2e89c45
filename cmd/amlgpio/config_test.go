// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var devicesFile = `
devices:
  - name: c1109880.gpio
    node: /soc/gpio@c1109880
    compatible: ["amlogic,m8b-gpio"]
    resources:
      - {type: irq, start: 64, end: 71}
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "amlgpio.json")
	require.Nil(t, os.WriteFile(cfgFile, []byte(`{"loglevel": "debug"}`), 0644))
	devFile := filepath.Join(dir, "devices.yaml")
	require.Nil(t, os.WriteFile(devFile, []byte(devicesFile), 0644))
	t.Setenv("AMLGPIO_CONFIG_FILE", cfgFile)
	t.Setenv("AMLGPIO_DEVICES", devFile)
	t.Setenv("AMLGPIO_IRQBASE", "48")

	cfg := loadConfig(probeCmd)
	assert.Equal(t, "debug", cfg.MustGet("loglevel").String())
	assert.Equal(t, 48, cfg.MustGet("irqbase").Int())
	assert.Equal(t, devFile, cfg.MustGet("devices").String())

	logger, err := newLogger(cfg)
	require.Nil(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	b, err := newBus(cfg, zap.NewNop())
	require.Nil(t, err)
	defer b.Close()
	inst, ok := b.Instance("c1109880.gpio")
	require.True(t, ok)
	assert.Equal(t, 48, inst.Virqs[0])
	assert.Equal(t, "/soc/gpio@c1109880", inst.Domain.Node())
}

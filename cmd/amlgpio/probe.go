// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/warthog618/config"
	"github.com/warthog618/mesongpio/irqdomain"
	"github.com/warthog618/mesongpio/platform"
	"go.uber.org/zap"
)

func init() {
	probeCmd.SetHelpTemplate(probeCmd.HelpTemplate() + extendedProbeHelp)
	rootCmd.AddCommand(probeCmd)
}

var extendedProbeHelp = `
The devices are read from the YAML file named by --devices, or the
AMLGPIO_DEVICES environment variable. If neither is set the stock m8b
controller at /soc/gpio@c1109880 is probed.

Each device is reported with the virtual IRQs mapped for its 8 GPIO IRQ
lines, or the reason the probe failed.
`

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe the GPIO controller devices",
	Long:  `Bind the m8b GPIO driver to the platform devices and report the IRQ mappings.`,
	Args:  cobra.NoArgs,
	RunE:  probe,
}

func probe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()
	b, err := newBus(cfg, logger)
	if b == nil {
		return err
	}
	defer b.Close()
	if err != nil {
		logErr(cmd, err)
	}
	report(cmd.OutOrStdout(), b)
	return nil
}

// newBus probes the configured devices with the m8b driver.
//
// The bus is returned even if some devices fail to probe.
func newBus(cfg *config.Config, logger *zap.Logger) (*platform.Bus, error) {
	devs, err := loadDevices(cfg)
	if err != nil {
		return nil, err
	}
	irqs := irqdomain.NewRegistry(cfg.MustGet("irqbase").Int())
	b := platform.NewBus()
	for _, dev := range devs {
		b.Add(dev)
	}
	return b, b.Register(platform.NewDriver(irqs, logger))
}

func report(w io.Writer, b *platform.Bus) {
	for _, dev := range b.Devices() {
		inst, ok := b.Instance(dev.Name)
		if !ok {
			fmt.Fprintf(w, "%s: unbound\n", dev.Name)
			continue
		}
		fmt.Fprintf(w, "%s: %s revision %d, virqs %v\n",
			dev.Name, inst.Domain.Node(), inst.Data.Regs.Revision, inst.Virqs)
	}
}

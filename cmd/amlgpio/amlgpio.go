// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warthog618/mesongpio"
)

var version = "undefined"

var rootCmd = &cobra.Command{
	Use:   "amlgpio",
	Short: "amlgpio is a utility to exercise Meson8b GPIO pin ownership",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.ConfigFile, "config-file", "c", "", "JSON config file")
	rootCmd.PersistentFlags().StringVarP(&rootOpts.LogLevel, "log-level", "L", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVarP(&rootOpts.Devices, "devices", "d", "", "YAML file describing the platform devices")
}

var rootOpts = struct {
	ConfigFile string
	LogLevel   string
	Devices    string
}{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "amlgpio %s: %s\n", cmd.Name(), err)
}

var catalog = mesongpio.M8B()

func parseOffset(arg string) (int, error) {
	if o, ok := catalog.Lookup(arg); ok {
		return o, nil
	}
	o, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("can't parse pin '%s'", arg)
	}
	if o >= uint64(catalog.Len()) {
		return 0, fmt.Errorf("unknown pin '%d'", o)
	}
	return int(o), nil
}

func parseOffsets(args []string) ([]int, error) {
	oo := []int(nil)
	for _, arg := range args {
		o, err := parseOffset(arg)
		if err != nil {
			return nil, err
		}
		oo = append(oo, o)
	}
	return oo, nil
}

func parseLevel(arg string) (mesongpio.Level, error) {
	if l, ok := levelNames[strings.ToLower(arg)]; ok {
		return l, nil
	}
	return mesongpio.Low, fmt.Errorf("can't parse level '%s'", arg)
}

var levelNames = map[string]mesongpio.Level{
	"high":  mesongpio.High,
	"hi":    mesongpio.High,
	"true":  mesongpio.High,
	"1":     mesongpio.High,
	"low":   mesongpio.Low,
	"lo":    mesongpio.Low,
	"false": mesongpio.Low,
	"0":     mesongpio.Low,
	"":      mesongpio.Low,
}

func parsePull(arg string) (mesongpio.Pull, error) {
	if p, ok := pullNames[strings.ToLower(arg)]; ok {
		return p, nil
	}
	return mesongpio.PullNone, fmt.Errorf("can't parse pull '%s'", arg)
}

var pullNames = map[string]mesongpio.Pull{
	"up":   mesongpio.PullUp,
	"u":    mesongpio.PullUp,
	"down": mesongpio.PullDown,
	"d":    mesongpio.PullDown,
	"none": mesongpio.PullNone,
	"n":    mesongpio.PullNone,
}

func parseTrigger(arg string) (mesongpio.Trigger, error) {
	var t mesongpio.Trigger
	for _, f := range strings.Split(strings.ToLower(arg), "|") {
		tt, ok := triggerNames[strings.TrimSpace(f)]
		if !ok {
			return mesongpio.TriggerNone, fmt.Errorf("can't parse trigger '%s'", arg)
		}
		t |= tt
	}
	return t, nil
}

var triggerNames = map[string]mesongpio.Trigger{
	"":        mesongpio.TriggerNone,
	"none":    mesongpio.TriggerNone,
	"rising":  mesongpio.TriggerRising,
	"falling": mesongpio.TriggerFalling,
	"both":    mesongpio.TriggerBoth,
	"high":    mesongpio.TriggerHigh,
	"low":     mesongpio.TriggerLow,
}

func parseFlags(arg string) (mesongpio.RequestFlags, error) {
	if f, ok := flagNames[strings.ToLower(arg)]; ok {
		return f, nil
	}
	return mesongpio.FlagIn, fmt.Errorf("can't parse flags '%s'", arg)
}

var flagNames = map[string]mesongpio.RequestFlags{
	"":         mesongpio.FlagIn,
	"in":       mesongpio.FlagIn,
	"out":      mesongpio.FlagOutInitLow,
	"out-low":  mesongpio.FlagOutInitLow,
	"out-high": mesongpio.FlagOutInitHigh,
}

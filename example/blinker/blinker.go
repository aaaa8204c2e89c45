// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warthog618/mesongpio"
	"github.com/warthog618/mesongpio/sim"
	"go.uber.org/zap"
)

// This example drives GPIOX_3 on a simulated m8b controller.
// The pin is requested as an output and toggled high and low at 1Hz with a
// 50% duty cycle, and freed on exit.
func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	cat := mesongpio.M8B()
	chip := sim.New(cat.Len())
	gw := mesongpio.New(cat, chip, mesongpio.WithLogger(logger))
	pin, _ := cat.Lookup("GPIOX_3")
	const owner = "blinker"
	if err := gw.RequestOne(pin, mesongpio.FlagOutInitLow, owner); err != nil {
		panic(err)
	}
	defer gw.Free(pin, owner)
	// capture exit signals to ensure pin is freed on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	for {
		select {
		case <-time.After(500 * time.Millisecond):
			l, err := gw.Value(pin, owner)
			if err == nil {
				err = gw.SetValue(pin, !l, owner)
			}
			if err != nil {
				fmt.Println("Toggle failed:", err)
				return
			}
			fmt.Println("Toggled", chip.Level(pin))
		case <-quit:
			return
		}
	}
}

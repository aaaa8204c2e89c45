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
	"github.com/warthog618/mesongpio/irqdomain"
	"github.com/warthog618/mesongpio/platform"
	"github.com/warthog618/mesongpio/sim"
	"go.uber.org/zap"
)

// Watches GPIOX_4 on a simulated m8b controller and reports when it changes
// state. The line is driven by a square wave standing in for the outside
// world.
func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	drv := platform.NewDriver(irqdomain.NewRegistry(32), logger)
	inst, err := drv.Probe(platform.DefaultDevice())
	if err != nil {
		panic(err)
	}
	defer inst.Remove()

	cat := mesongpio.M8B()
	chip := sim.New(cat.Len(), sim.WithDomain(inst.Domain))
	gw := mesongpio.New(cat, chip,
		mesongpio.WithLogger(logger),
		mesongpio.WithPullController(chip))
	pin, _ := cat.Lookup("GPIOX_4")
	const owner = "watcher"
	virq, err := gw.RequestIRQ(pin, owner, mesongpio.TriggerBoth)
	if err != nil {
		panic(err)
	}
	defer gw.Free(pin, owner)
	if err := gw.SetPullUpDown(pin, mesongpio.PullDown, owner); err != nil {
		panic(err)
	}

	// capture exit signals to ensure resources are released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	err = chip.Watch(virq, func(virq int) {
		l, _ := gw.Value(pin, owner)
		fmt.Printf("GPIOX_4 (irq %d) is %v\n", virq, l)
	})
	if err != nil {
		panic(err)
	}
	defer chip.Unwatch(virq)

	done := make(chan struct{})
	defer close(done)
	go func() {
		l := mesongpio.Low
		for {
			select {
			case <-time.After(time.Second):
				chip.Drive(pin, l)
				l = !l
			case <-done:
				return
			}
		}
	}()

	// In a real application the main thread would do something useful here.
	// But we'll just run for a minute then exit.
	fmt.Println("Watching GPIOX_4...")
	select {
	case <-time.After(time.Minute):
	case <-quit:
	}
}

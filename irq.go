// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// GPIO to IRQ capabilities for owned pins.

package mesongpio

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RequestIRQ requests the pin for label and maps it to an interrupt that
// fires on trigger.
//
// Returns the virtual IRQ number. If the IRQ cannot be resolved then the
// pin is released again.
func (g *Gateway) RequestIRQ(pin int, label string, trigger Trigger) (int, error) {
	if err := g.validateRequest(pin, label); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.claim(pin, label, g.alloc.Request(pin, label)); err != nil {
		return 0, err
	}
	irq, err := g.resolveIRQ(pin, trigger)
	if err != nil {
		return 0, multierr.Append(err, g.free(pin))
	}
	return irq, nil
}

// ToIRQ maps a pin already owned by owner to an interrupt that fires on
// trigger, and returns the virtual IRQ number.
func (g *Gateway) ToIRQ(pin int, owner string, trigger Trigger) (irq int, err error) {
	err = g.gated(pin, owner, func() error {
		irq, err = g.resolveIRQ(pin, trigger)
		return err
	})
	return irq, err
}

// resolveIRQ assumes the caller holds mu.
func (g *Gateway) resolveIRQ(pin int, trigger Trigger) (int, error) {
	irq, err := g.alloc.ToIRQ(pin, trigger)
	if err != nil {
		g.logger.Debug("gpio to irq failed",
			zap.Int("pin", pin),
			zap.String("name", g.catalog.Name(pin)),
			zap.Error(err))
		return 0, err
	}
	g.logger.Debug("gpio to irq",
		zap.Int("pin", pin),
		zap.String("name", g.catalog.Name(pin)),
		zap.Stringer("trigger", trigger),
		zap.Int("irq", irq))
	return irq, nil
}

// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Interrupt capabilities for simulated lines.

package sim

import (
	"github.com/pkg/errors"
	"github.com/warthog618/mesongpio"
)

// ErrWatchExists indicates a handler is already registered for the virq.
var ErrWatchExists = errors.New("watch already exists")

// Watch registers a handler called with the virq whenever the pin routed
// to it sees an edge matching its trigger.
//
// The virq can only be watched once. Subsequent watches, without an
// Unwatch, will return an error.
func (c *Chip) Watch(virq int, handler func(virq int)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.handlers[virq]; ok {
		return ErrWatchExists
	}
	c.handlers[virq] = handler
	return nil
}

// Unwatch removes any handler from the virq.
func (c *Chip) Unwatch(virq int) {
	c.mu.Lock()
	delete(c.handlers, virq)
	c.mu.Unlock()
}

// Drive sets the level externally applied to the line.
//
// The drive is only seen by the line while it is an input. Handlers for
// any interrupt triggered by the change are called before Drive returns.
func (c *Chip) Drive(pin int, level mesongpio.Level) error {
	c.mu.Lock()
	if pin < 0 || pin >= c.lines {
		c.mu.Unlock()
		return errors.Errorf("pin %d out of range", pin)
	}
	old := c.level(pin)
	c.drive[pin] = level
	now := c.level(pin)
	var fired []func(int)
	var virqs []int
	for ch, chn := range c.channels {
		if !chn.used || chn.pin != pin || !triggered(chn.trigger, old, now) {
			continue
		}
		virq, ok := c.domain.FindMapping(ch)
		if !ok {
			continue
		}
		if h, ok := c.handlers[virq]; ok {
			fired = append(fired, h)
			virqs = append(virqs, virq)
		}
	}
	c.mu.Unlock()
	for i, h := range fired {
		h(virqs[i])
	}
	return nil
}

func triggered(t mesongpio.Trigger, old, now mesongpio.Level) bool {
	o, n := bool(old), bool(now)
	switch {
	case t&mesongpio.TriggerRising != 0 && !o && n:
		return true
	case t&mesongpio.TriggerFalling != 0 && o && !n:
		return true
	case t&mesongpio.TriggerHigh != 0 && n && o != n:
		return true
	case t&mesongpio.TriggerLow != 0 && !n && o != n:
		return true
	}
	return false
}

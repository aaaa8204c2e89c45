// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package sim provides a simulated Meson GPIO chip.
//
// The Chip implements the mesongpio Allocator and PullController, keeping
// line state in a block of simulated registers.  Inputs are driven
// externally via Drive, and pins mapped to interrupts report edges to
// handlers registered with Watch.
//
// The chip routes pins to a small number of IRQ channels, eight on the
// m8b, which are the hwirqs of the chip's interrupt domain.
package sim

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/mesongpio"
	"github.com/warthog618/mesongpio/irqdomain"
	"golang.org/x/sys/unix"
)

// IRQChannels is the number of GPIO interrupt channels on the m8b.
const IRQChannels = 8

// Register offsets within a bank.
const (
	oenReg = iota // 1 for input, as on the Meson
	outReg
	inReg
	pullEnReg
	pullUpReg
	bankRegs
)

// Chip is a simulated GPIO chip.
type Chip struct {
	mu    sync.Mutex
	lines int
	// registers, in banks of 32 lines
	mem    []uint32
	labels []string
	// external drive level, seen on inputs
	drive []mesongpio.Level

	domain   irqdomain.Domain
	channels []channel
	handlers map[int]func(int)

	// failures injected for pins, returned by the next request
	failRequest map[int]error
	calls       int
}

type channel struct {
	used    bool
	pin     int
	trigger mesongpio.Trigger
}

// Option modifies the construction of a Chip.
type Option func(*Chip)

// WithDomain connects the chip's IRQ channels to the hwirqs of the domain.
func WithDomain(d irqdomain.Domain) Option {
	return func(c *Chip) {
		c.domain = d
	}
}

// WithIRQChannels sets the number of IRQ channels.
// The default is IRQChannels.
func WithIRQChannels(n int) Option {
	return func(c *Chip) {
		c.channels = make([]channel, n)
	}
}

// WithHog marks a line as already requested by some other consumer.
func WithHog(pin int, consumer string) Option {
	return func(c *Chip) {
		if pin >= 0 && pin < c.lines {
			c.labels[pin] = consumer
		}
	}
}

// New creates a Chip with the given number of lines.
//
// All lines start as unrequested inputs, not pulled.
func New(lines int, options ...Option) *Chip {
	banks := (lines + 31) / 32
	c := &Chip{
		lines:       lines,
		mem:         make([]uint32, banks*bankRegs),
		labels:      make([]string, lines),
		drive:       make([]mesongpio.Level, lines),
		channels:    make([]channel, IRQChannels),
		handlers:    make(map[int]func(int)),
		failRequest: make(map[int]error),
	}
	for b := 0; b < banks; b++ {
		c.mem[b*bankRegs+oenReg] = 0xffffffff
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// reg returns the index of the register and the mask of the pin within it.
func reg(pin, r int) (int, uint32) {
	bank := pin / 32
	return bank*bankRegs + r, uint32(1) << uint(pin&0x1f)
}

// bit assumes the caller holds mu.
func (c *Chip) bit(pin, r int) bool {
	idx, mask := reg(pin, r)
	return c.mem[idx]&mask != 0
}

// setBit assumes the caller holds mu.
func (c *Chip) setBit(pin, r int, v bool) {
	idx, mask := reg(pin, r)
	if v {
		c.mem[idx] |= mask
	} else {
		c.mem[idx] &^= mask
	}
}

// check assumes the caller holds mu.
func (c *Chip) check(pin int) error {
	c.calls++
	if pin < 0 || pin >= c.lines {
		return unix.EINVAL
	}
	return nil
}

// checkRequested assumes the caller holds mu.
func (c *Chip) checkRequested(pin int) error {
	if err := c.check(pin); err != nil {
		return err
	}
	if c.labels[pin] == "" {
		return unix.EPERM
	}
	return nil
}

// Lines returns the number of lines on the chip.
func (c *Chip) Lines() int {
	return c.lines
}

// Calls returns the number of line operations performed on the chip.
func (c *Chip) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// FailRequest causes the next request of the pin to fail with err.
func (c *Chip) FailRequest(pin int, err error) {
	c.mu.Lock()
	c.failRequest[pin] = err
	c.mu.Unlock()
}

// Request requests the line for the consumer label.
func (c *Chip) Request(pin int, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.request(pin, label)
}

// request assumes the caller holds mu.
func (c *Chip) request(pin int, label string) error {
	if err := c.check(pin); err != nil {
		return err
	}
	if err, ok := c.failRequest[pin]; ok {
		delete(c.failRequest, pin)
		return err
	}
	if c.labels[pin] != "" {
		return unix.EBUSY
	}
	c.labels[pin] = label
	return nil
}

// RequestOne requests the line and sets its direction and initial level.
func (c *Chip) RequestOne(pin int, flags mesongpio.RequestFlags, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.request(pin, label); err != nil {
		return err
	}
	if flags.IsInput() {
		c.setBit(pin, oenReg, true)
		return nil
	}
	c.setBit(pin, outReg, bool(flags.InitLevel()))
	c.setBit(pin, oenReg, false)
	return nil
}

// Free releases the line, reverting it to an input and unrouting any
// IRQ channel it was using.
func (c *Chip) Free(pin int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRequested(pin); err != nil {
		return err
	}
	c.labels[pin] = ""
	c.setBit(pin, oenReg, true)
	for i := range c.channels {
		if c.channels[i].used && c.channels[i].pin == pin {
			c.channels[i] = channel{}
		}
	}
	return nil
}

// DirectionInput sets the line as an input.
func (c *Chip) DirectionInput(pin int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRequested(pin); err != nil {
		return err
	}
	c.setBit(pin, oenReg, true)
	return nil
}

// DirectionOutput sets the line as an output driving value.
func (c *Chip) DirectionOutput(pin int, value mesongpio.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRequested(pin); err != nil {
		return err
	}
	c.setBit(pin, outReg, bool(value))
	c.setBit(pin, oenReg, false)
	return nil
}

// Value returns the level of the line.
func (c *Chip) Value(pin int) (mesongpio.Level, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRequested(pin); err != nil {
		return mesongpio.Low, err
	}
	return c.level(pin), nil
}

// level assumes the caller holds mu.
func (c *Chip) level(pin int) mesongpio.Level {
	if !c.bit(pin, oenReg) {
		return mesongpio.Level(c.bit(pin, outReg))
	}
	c.setBit(pin, inReg, bool(c.inputLevel(pin)))
	return mesongpio.Level(c.bit(pin, inReg))
}

// inputLevel is the level seen by an input, which is the external drive,
// else the pull, else low. Assumes the caller holds mu.
func (c *Chip) inputLevel(pin int) mesongpio.Level {
	if c.drive[pin] {
		return mesongpio.High
	}
	if c.bit(pin, pullEnReg) && c.bit(pin, pullUpReg) {
		return mesongpio.High
	}
	return mesongpio.Low
}

// SetValue sets the level of the line's output latch.
func (c *Chip) SetValue(pin int, value mesongpio.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRequested(pin); err != nil {
		return err
	}
	c.setBit(pin, outReg, bool(value))
	return nil
}

// SetPull programs the pull up/down of the line.
func (c *Chip) SetPull(pin int, pull mesongpio.Pull) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(pin); err != nil {
		return err
	}
	c.setBit(pin, pullEnReg, pull != mesongpio.PullNone)
	c.setBit(pin, pullUpReg, pull == mesongpio.PullUp)
	return nil
}

// ToIRQ routes the pin to an IRQ channel, configured for trigger, and
// returns the virq the domain maps the channel to.
//
// A pin already routed keeps its channel, with the trigger updated.
func (c *Chip) ToIRQ(pin int, trigger mesongpio.Trigger) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRequested(pin); err != nil {
		return 0, err
	}
	if c.domain == nil {
		return 0, unix.ENXIO
	}
	free := -1
	ch := -1
	for i, chn := range c.channels {
		if chn.used && chn.pin == pin {
			ch = i
			break
		}
		if !chn.used && free < 0 {
			free = i
		}
	}
	if ch < 0 {
		if free < 0 {
			return 0, unix.ENOSPC
		}
		ch = free
	}
	virq, ok := c.domain.FindMapping(ch)
	if !ok {
		var err error
		if virq, err = c.domain.CreateMapping(ch); err != nil {
			return 0, errors.Wrapf(err, "channel %d", ch)
		}
	}
	c.channels[ch] = channel{used: true, pin: pin, trigger: trigger}
	return virq, nil
}

// Label returns the consumer label of the line, or "" if not requested.
func (c *Chip) Label(pin int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pin < 0 || pin >= c.lines {
		return ""
	}
	return c.labels[pin]
}

// IsOutput returns true if the line is an output.
func (c *Chip) IsOutput(pin int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pin < 0 || pin >= c.lines {
		return false
	}
	return !c.bit(pin, oenReg)
}

// Level returns the level of the line, whether requested or not.
func (c *Chip) Level(pin int) mesongpio.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pin < 0 || pin >= c.lines {
		return mesongpio.Low
	}
	return c.level(pin)
}

// Pull returns the pull programmed for the line.
func (c *Chip) Pull(pin int) mesongpio.Pull {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pin < 0 || pin >= c.lines || !c.bit(pin, pullEnReg) {
		return mesongpio.PullNone
	}
	if c.bit(pin, pullUpReg) {
		return mesongpio.PullUp
	}
	return mesongpio.PullDown
}

// Trigger returns the trigger of the IRQ channel the pin is routed to.
func (c *Chip) Trigger(pin int) (mesongpio.Trigger, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chn := range c.channels {
		if chn.used && chn.pin == pin {
			return chn.trigger, true
		}
	}
	return mesongpio.TriggerNone, false
}

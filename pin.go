// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package mesongpio provides ownership-checked GPIO access for the Amlogic
// Meson8b (m8b) SoC family.
//
// Supports:
// - Pin request/free, singly or as arrays
// - Pin direction (input/output)
// - Pin read/write (high/low)
// - Pull up/down/off
// - GPIO to IRQ mapping
//
// Every pin has at most one owner, identified by the label used to request
// it. All other operations must present the same label, so one subsystem
// cannot accidentally reconfigure a pin that another subsystem holds.
// The label is an advisory tag, not a credential.
//
// The package does not touch hardware itself. The line operations are
// forwarded to an Allocator, and pull programming to a PullController,
// once the ownership checks have passed.
//
// Example of use:
//
//	gw := mesongpio.New(mesongpio.M8B(), chip, mesongpio.WithPullController(chip))
//	pin, _ := gw.Lookup("GPIOX_3")
//	if err := gw.RequestOne(pin, mesongpio.FlagOutInitLow, "led"); err != nil {
//		return err
//	}
//	defer gw.Free(pin, "led")
//	gw.SetValue(pin, mesongpio.High, "led")
package mesongpio

import (
	"fmt"
	"strings"
)

// Level represents the high (true) or low (false) level of a pin.
type Level bool

// Level of pin, High / Low
const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Pull defines the pull up/down state of a pin.
type Pull int

// Pull Up / Down / Off
const (
	PullNone Pull = iota
	PullDown
	PullUp
)

func (p Pull) String() string {
	switch p {
	case PullDown:
		return "down"
	case PullUp:
		return "up"
	}
	return "none"
}

// RequestFlags configures the direction and initial level of a pin as it is
// requested.
type RequestFlags uint

// Values match the GPIOF_* flags of the Linux gpio API.
const (
	FlagDirOut     RequestFlags = 0
	FlagDirIn      RequestFlags = 1 << 0
	FlagInitLow    RequestFlags = 0
	FlagInitHigh   RequestFlags = 1 << 1
	FlagOpenDrain  RequestFlags = 1 << 2
	FlagOpenSource RequestFlags = 1 << 3

	FlagIn          = FlagDirIn
	FlagOutInitLow  = FlagDirOut | FlagInitLow
	FlagOutInitHigh = FlagDirOut | FlagInitHigh
)

// IsInput returns true if the flags request an input.
func (f RequestFlags) IsInput() bool {
	return f&FlagDirIn != 0
}

// InitLevel returns the initial level requested for an output.
func (f RequestFlags) InitLevel() Level {
	return f&FlagInitHigh != 0
}

// Trigger selects the conditions that raise an interrupt on a pin.
type Trigger uint

// Values match the IRQF_TRIGGER_* flags.
const (
	TriggerNone    Trigger = 0
	TriggerRising  Trigger = 1 << 0
	TriggerFalling Trigger = 1 << 1
	TriggerHigh    Trigger = 1 << 2
	TriggerLow     Trigger = 1 << 3

	TriggerBoth = TriggerRising | TriggerFalling
)

func (t Trigger) String() string {
	if t == TriggerNone {
		return "none"
	}
	var ss []string
	for _, n := range []struct {
		t    Trigger
		name string
	}{
		{TriggerRising, "rising"},
		{TriggerFalling, "falling"},
		{TriggerHigh, "high"},
		{TriggerLow, "low"},
	} {
		if t&n.t != 0 {
			ss = append(ss, n.name)
		}
	}
	return strings.Join(ss, "|")
}

// Catalog is the immutable table of pin names for a chip.
// The index of a name in the catalog is the pin number.
type Catalog struct {
	names []string
	index map[string]int
}

// NewCatalog creates a Catalog from the names provided.
//
// The names are copied, so later changes to the slice do not alter the
// catalog. Duplicate names resolve to the lowest pin in Lookup.
func NewCatalog(names []string) *Catalog {
	c := &Catalog{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i := len(names) - 1; i >= 0; i-- {
		c.index[strings.ToUpper(names[i])] = i
	}
	return c
}

// Len returns the number of pins in the catalog.
// Valid pin numbers are [0, Len).
func (c *Catalog) Len() int {
	return len(c.names)
}

// Name returns the name of the pin, or "" if the pin is not in the catalog.
func (c *Catalog) Name(pin int) string {
	if pin < 0 || pin >= len(c.names) {
		return ""
	}
	return c.names[pin]
}

// Lookup returns the pin number with the given name.
// Names are case insensitive.
func (c *Catalog) Lookup(name string) (int, bool) {
	pin, ok := c.index[strings.ToUpper(name)]
	return pin, ok
}

// Bank describes a contiguous group of similarly named pins.
type Bank struct {
	Prefix string
	Count  int
}

// m8bBanks lists the m8b GPIO banks in pin number order.
var m8bBanks = []Bank{
	{"GPIOX_", 22},
	{"GPIOY_", 17},
	{"GPIODV_", 30},
	{"GPIOH_", 10},
	{"CARD_", 7},
	{"BOOT_", 19},
	{"DIF_", 5},
	{"GPIOAO_", 14},
}

// BankNames expands banks into a list of pin names, e.g. GPIOX_0, GPIOX_1...
func BankNames(banks []Bank) []string {
	var names []string
	for _, b := range banks {
		for i := 0; i < b.Count; i++ {
			names = append(names, fmt.Sprintf("%s%d", b.Prefix, i))
		}
	}
	return names
}

// M8B returns the catalog of the Meson8b GPIO pins.
func M8B() *Catalog {
	return NewCatalog(append(BankNames(m8bBanks), "GPIO_TEST_N"))
}

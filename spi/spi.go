// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package spi provides a bit bashed SPI master on pins owned through a
// mesongpio Gateway.
package spi

import (
	"sync"
	"time"

	"github.com/warthog618/mesongpio"
)

// SPI represents a device connected via an SPI bus using 3 or 4 GPIO lines.
// Depending on the device, the two data pins, Mosi and Miso, may be tied and
// connected to a single GPIO pin.
// It is not related to the SPI device drivers provided by Linux.
type SPI struct {
	Mu sync.Mutex
	// time between clock edges (i.e. half the cycle time)
	Tclk  time.Duration
	Sclk  int
	Ssz   int
	Mosi  int
	Miso  int
	gw    *mesongpio.Gateway
	owner string
	reqs  []mesongpio.Request
}

// New creates a SPI, requesting its pins for owner.
//
// Either all the pins are requested or none are.
func New(gw *mesongpio.Gateway, owner string, tclk time.Duration, sclk, ssz, mosi, miso int) (*SPI, error) {
	spi := &SPI{
		Tclk:  tclk,
		Sclk:  sclk,
		Ssz:   ssz,
		Mosi:  mosi,
		Miso:  miso,
		gw:    gw,
		owner: owner,
	}
	// hold SPI reset until needed...
	spi.reqs = []mesongpio.Request{
		{Pin: sclk, Flags: mesongpio.FlagOutInitLow, Label: owner},
		{Pin: ssz, Flags: mesongpio.FlagOutInitHigh, Label: owner},
		{Pin: miso, Flags: mesongpio.FlagIn, Label: owner},
	}
	if mosi != miso {
		spi.reqs = append(spi.reqs, mesongpio.Request{Pin: mosi, Flags: mesongpio.FlagIn, Label: owner})
	}
	if err := gw.RequestArray(spi.reqs); err != nil {
		return nil, err
	}
	return spi, nil
}

// Owner returns the label the SPI pins are owned by.
func (spi *SPI) Owner() string {
	return spi.owner
}

// Close releases the pins used to drive the SPI device.
func (spi *SPI) Close() error {
	spi.Mu.Lock()
	defer spi.Mu.Unlock()
	return spi.gw.FreeArray(spi.reqs)
}

// Select asserts (low) or deasserts (high) the slave select.
// Assumes caller already holds the Mu lock.
func (spi *SPI) Select(l mesongpio.Level) error {
	return spi.gw.SetValue(spi.Ssz, l, spi.owner)
}

// Clock sets the level of the clock.
// Assumes caller already holds the Mu lock.
func (spi *SPI) Clock(l mesongpio.Level) error {
	return spi.gw.SetValue(spi.Sclk, l, spi.owner)
}

// MosiOutput switches Mosi to an output, initially at level l.
// Assumes caller already holds the Mu lock.
func (spi *SPI) MosiOutput(l mesongpio.Level) error {
	return spi.gw.DirectionOutput(spi.Mosi, spi.owner, l)
}

// MosiInput returns Mosi to an input, as required to read from a tied Miso.
// Assumes caller already holds the Mu lock.
func (spi *SPI) MosiInput() error {
	return spi.gw.DirectionInput(spi.Mosi, spi.owner)
}

// ClockIn clocks in a data bit from the SPI device on Miso.
// Assumes clock starts high and ends with the rising edge of the next clock.
// Assumes caller already holds the Mu lock.
func (spi *SPI) ClockIn() (mesongpio.Level, error) {
	time.Sleep(spi.Tclk)
	// SPI device writes on the falling edge
	if err := spi.Clock(mesongpio.Low); err != nil {
		return mesongpio.Low, err
	}
	time.Sleep(spi.Tclk)
	b, err := spi.gw.Value(spi.Miso, spi.owner)
	if err != nil {
		return mesongpio.Low, err
	}
	return b, spi.Clock(mesongpio.High)
}

// ClockOut clocks out a data bit to the SPI device on Mosi.
// Assumes clock starts low and ends with the falling edge of the next clock.
// Assumes caller already holds the Mu lock.
func (spi *SPI) ClockOut(l mesongpio.Level) error {
	if err := spi.gw.SetValue(spi.Mosi, l, spi.owner); err != nil {
		return err
	}
	time.Sleep(spi.Tclk)
	// SPI device reads on the rising edge
	if err := spi.Clock(mesongpio.High); err != nil {
		return err
	}
	time.Sleep(spi.Tclk)
	return spi.Clock(mesongpio.Low)
}

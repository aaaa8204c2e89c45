// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package platform binds the Meson GPIO driver to platform devices
// described by device tree style nodes.
//
// Probing a device creates the linear IRQ domain covering the GPIO
// interrupt channels of the chip and maps each channel to a virtual IRQ.
package platform

import (
	"github.com/pkg/errors"
	"github.com/warthog618/mesongpio"
	"github.com/warthog618/mesongpio/irqdomain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// IRQLines is the number of GPIO interrupt lines covered by the domain.
const IRQLines = 8

// DriverName is the name of the m8b GPIO driver.
const DriverName = "m8b-gpio"

// ErrNoPlatformData indicates the device neither matches the driver nor
// carries its own platform data.
var ErrNoPlatformData = errors.New("no platform data")

// ResourceType identifies the kind of a Resource.
type ResourceType int

const (
	// ResourceMem is a register window.
	ResourceMem ResourceType = iota
	// ResourceIRQ is an interrupt line.
	ResourceIRQ
)

// Resource is a hardware resource assigned to a device.
type Resource struct {
	Type  ResourceType
	Name  string
	Start int
	End   int
}

// Device is a platform device.
type Device struct {
	Name string
	// Node is the path of the device tree node describing the device.
	Node       string
	Compatible []string
	Resources  []Resource
	// PlatformData is used if no match entry applies.
	PlatformData *Data
}

// Resource returns the nth resource of the given type.
func (d *Device) Resource(t ResourceType, n int) (Resource, bool) {
	for _, r := range d.Resources {
		if r.Type != t {
			continue
		}
		if n == 0 {
			return r, true
		}
		n--
	}
	return Resource{}, false
}

// RegOffsets are the register offsets of a chip revision.
type RegOffsets struct {
	Revision uint16
}

// Data is the platform data of the driver.
type Data struct {
	Regs *RegOffsets
}

// Match associates a compatible string with the platform data for it.
type Match struct {
	Compatible string
	Data       *Data
}

var m8bRegs = RegOffsets{Revision: 0x01}

// Matches are the devices supported by the driver.
var Matches = []Match{
	{Compatible: "amlogic,m8b-gpio", Data: &Data{Regs: &m8bRegs}},
}

// LockClass separates the GPIO interrupts from their parents.
var LockClass = irqdomain.NewLockClass("gpio-irq")

// Driver is the m8b GPIO platform driver.
type Driver struct {
	Name    string
	Matches []Match
	// IRQs creates the interrupt domain of each probed device.
	IRQs   irqdomain.Controller
	Logger *zap.Logger
}

// NewDriver creates the m8b driver, creating interrupt domains with irqs.
func NewDriver(irqs irqdomain.Controller, logger *zap.Logger) *Driver {
	return &Driver{
		Name:    DriverName,
		Matches: Matches,
		IRQs:    irqs,
		Logger:  logger,
	}
}

// Match returns the match entry for the device, if any.
func (drv *Driver) Match(dev *Device) (*Match, bool) {
	for i := range drv.Matches {
		for _, c := range dev.Compatible {
			if c == drv.Matches[i].Compatible {
				return &drv.Matches[i], true
			}
		}
	}
	return nil, false
}

// Instance is a device bound to the driver.
type Instance struct {
	Device *Device
	Data   *Data
	Domain irqdomain.Domain
	// Virqs are the virtual IRQs of the interrupt lines, indexed by hwirq.
	Virqs []int
}

// Probe binds the driver to the device.
//
// The device must provide platform data, via a match or directly, and an
// IRQ resource. On success the interrupt domain has IRQLines lines, each
// mapped to a valid virq.
func (drv *Driver) Probe(dev *Device) (*Instance, error) {
	log := drv.logger().With(zap.String("device", dev.Name), zap.String("node", dev.Node))
	log.Debug("probe")
	pdata := dev.PlatformData
	if m, ok := drv.Match(dev); ok {
		pdata = m.Data
	}
	if pdata == nil {
		return nil, errors.Wrapf(ErrNoPlatformData, "device %s", dev.Name)
	}
	if _, ok := dev.Resource(ResourceIRQ, 0); !ok {
		log.Error("invalid IRQ resource")
		return nil, errors.Wrapf(mesongpio.ErrNoResource, "device %s: no IRQ resource", dev.Name)
	}
	domain, err := drv.IRQs.AddLinear(dev.Node, IRQLines, irqdomain.OneCellOps)
	if err != nil {
		log.Error("couldn't register an IRQ domain", zap.Error(err))
		return nil, errors.Wrapf(mesongpio.ErrNoResource, "device %s: %v", dev.Name, err)
	}
	inst := &Instance{
		Device: dev,
		Data:   pdata,
		Domain: domain,
		Virqs:  make([]int, IRQLines),
	}
	for hwirq := 0; hwirq < IRQLines; hwirq++ {
		if err := inst.mapIRQ(hwirq); err != nil {
			log.Error("couldn't map IRQ", zap.Int("hwirq", hwirq), zap.Error(err))
			return nil, multierr.Append(err, domain.Remove())
		}
	}
	log.Info("probed", zap.Ints("virqs", inst.Virqs))
	return inst, nil
}

func (inst *Instance) mapIRQ(hwirq int) error {
	virq, err := inst.Domain.CreateMapping(hwirq)
	if err != nil {
		return err
	}
	if err := inst.Domain.SetLockClass(virq, LockClass); err != nil {
		return err
	}
	if err := inst.Domain.SetChipData(virq, inst.Data); err != nil {
		return err
	}
	if err := inst.Domain.MarkValid(virq); err != nil {
		return err
	}
	inst.Virqs[hwirq] = virq
	return nil
}

// IRQ returns the virq for an interrupt specifier referencing the device.
func (inst *Instance) IRQ(intspec []uint32) (int, error) {
	hwirq, _, err := inst.Domain.Xlate(intspec)
	if err != nil {
		return 0, err
	}
	return inst.Virqs[hwirq], nil
}

// Remove unbinds the driver from the device, disposing of the interrupt
// domain.
func (inst *Instance) Remove() error {
	return inst.Domain.Remove()
}

func (drv *Driver) logger() *zap.Logger {
	if drv.Logger == nil {
		return zap.NewNop()
	}
	return drv.Logger
}

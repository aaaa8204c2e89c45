// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package platform

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Bus binds registered drivers to added devices.
//
// A device that fails to probe is left unbound, but remains on the bus and
// is retried when another driver is registered.
type Bus struct {
	mu        sync.Mutex
	drivers   []*Driver
	devices   []*Device
	instances map[*Device]*Instance
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{instances: make(map[*Device]*Instance)}
}

// Register adds the driver to the bus and probes any unbound devices it
// matches. The returned error combines any probe failures.
func (b *Bus) Register(drv *Driver) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drivers = append(b.drivers, drv)
	for _, dev := range b.devices {
		if _, ok := b.instances[dev]; ok {
			continue
		}
		if _, ok := drv.Match(dev); !ok {
			continue
		}
		err = multierr.Append(err, b.probe(drv, dev))
	}
	return err
}

// Add adds the device to the bus and probes it with the first driver that
// matches.
func (b *Bus) Add(dev *Device) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append(b.devices, dev)
	for _, drv := range b.drivers {
		if _, ok := drv.Match(dev); ok {
			return b.probe(drv, dev)
		}
	}
	return nil
}

// probe assumes the caller holds mu.
func (b *Bus) probe(drv *Driver, dev *Device) error {
	inst, err := drv.Probe(dev)
	if err != nil {
		return errors.WithMessagef(err, "%s probe of %s failed", drv.Name, dev.Name)
	}
	b.instances[dev] = inst
	return nil
}

// Instance returns the instance bound to the device named name.
func (b *Bus) Instance(name string) (*Instance, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for dev, inst := range b.instances {
		if dev.Name == name {
			return inst, true
		}
	}
	return nil, false
}

// Devices returns the devices on the bus, in the order added.
func (b *Bus) Devices() []*Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Device(nil), b.devices...)
}

// Close removes all bound instances.
func (b *Bus) Close() (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for dev, inst := range b.instances {
		err = multierr.Append(err, inst.Remove())
		delete(b.instances, dev)
	}
	return err
}

// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package platform_test

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/mesongpio"
	"github.com/warthog618/mesongpio/irqdomain"
	"github.com/warthog618/mesongpio/platform"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// controller counts the domains requested of the wrapped Registry, and
// optionally fails them.
type controller struct {
	*irqdomain.Registry
	adds int
	fail error
	// failValid fails the nth MarkValid of each domain, if non-zero.
	failValid int
}

func (c *controller) AddLinear(node string, size int, ops *irqdomain.Ops) (irqdomain.Domain, error) {
	c.adds++
	if c.fail != nil {
		return nil, c.fail
	}
	d, err := c.Registry.AddLinear(node, size, ops)
	if err != nil || c.failValid == 0 {
		return d, err
	}
	return &faultyDomain{Domain: d, failAt: c.failValid}, nil
}

// faultyDomain fails the failAt'th call to MarkValid.
type faultyDomain struct {
	irqdomain.Domain
	calls  int
	failAt int
}

var errInvalid = errors.New("can't mark valid")

func (d *faultyDomain) MarkValid(virq int) error {
	d.calls++
	if d.calls == d.failAt {
		return errInvalid
	}
	return d.Domain.MarkValid(virq)
}

func newController() *controller {
	return &controller{Registry: irqdomain.NewRegistry(64)}
}

func TestProbe(t *testing.T) {
	ctl := newController()
	drv := platform.NewDriver(ctl, nil)
	dev := platform.DefaultDevice()
	inst, err := drv.Probe(dev)
	require.Nil(t, err)
	assert.Equal(t, 1, ctl.adds)
	assert.Equal(t, dev, inst.Device)
	assert.Equal(t, uint16(1), inst.Data.Regs.Revision)
	assert.Equal(t, dev.Node, inst.Domain.Node())
	assert.Equal(t, platform.IRQLines, inst.Domain.Size())
	require.Len(t, inst.Virqs, 8)
	seen := map[int]bool{}
	for hwirq, virq := range inst.Virqs {
		assert.False(t, seen[virq])
		seen[virq] = true
		desc, ok := ctl.Desc(virq)
		require.True(t, ok)
		assert.Equal(t, hwirq, desc.Hwirq)
		assert.True(t, desc.Valid)
		assert.True(t, desc.LockClass == platform.LockClass)
		assert.Equal(t, inst.Data, desc.ChipData)
	}
	assert.Len(t, seen, 8)

	virq, err := inst.IRQ([]uint32{5})
	assert.Nil(t, err)
	assert.Equal(t, inst.Virqs[5], virq)
	_, err = inst.IRQ([]uint32{8})
	assert.True(t, errors.Is(err, irqdomain.ErrInvalidHwirq))

	require.Nil(t, inst.Remove())
	for _, virq := range inst.Virqs {
		_, ok := ctl.Desc(virq)
		assert.False(t, ok)
	}
	assert.Equal(t, 0, ctl.Len())
}

func TestProbeNoIRQResource(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	ctl := newController()
	drv := platform.NewDriver(ctl, zap.New(core))
	dev := platform.DefaultDevice()
	dev.Resources = dev.Resources[:1]
	inst, err := drv.Probe(dev)
	assert.Nil(t, inst)
	assert.True(t, errors.Is(err, mesongpio.ErrNoResource))
	assert.Equal(t, 0, ctl.adds)
	assert.Equal(t, 1, logs.FilterMessage("invalid IRQ resource").Len())
}

func TestProbeDomainFailure(t *testing.T) {
	ctl := newController()
	ctl.fail = errors.New("no memory")
	drv := platform.NewDriver(ctl, nil)
	inst, err := drv.Probe(platform.DefaultDevice())
	assert.Nil(t, inst)
	assert.True(t, errors.Is(err, mesongpio.ErrNoResource))
	assert.Equal(t, 1, ctl.adds)
}

func TestProbeMappingFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	ctl := newController()
	ctl.failValid = 4
	drv := platform.NewDriver(ctl, zap.New(core))
	inst, err := drv.Probe(platform.DefaultDevice())
	assert.Nil(t, inst)
	assert.True(t, errors.Is(err, errInvalid))
	assert.Equal(t, 1, ctl.adds)
	assert.Equal(t, 0, ctl.Len())
	for virq := 64; virq < 64+platform.IRQLines; virq++ {
		_, ok := ctl.Desc(virq)
		assert.False(t, ok, virq)
	}
	entries := logs.FilterMessage("couldn't map IRQ").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["hwirq"])

	// the node is free to be probed again
	ctl.failValid = 0
	inst, err = drv.Probe(platform.DefaultDevice())
	require.Nil(t, err)
	assert.Len(t, inst.Virqs, platform.IRQLines)
}

func TestLoadAndProbe(t *testing.T) {
	devs, err := platform.LoadDevices(strings.NewReader(`
devices:
  - name: c1109880.gpio
    node: /soc/gpio@c1109880
    compatible: ["amlogic,m8b-gpio"]
    resources:
      - {type: irq, start: 64, end: 71}
  - name: c1109900.gpio
    compatible:
      - amlogic,m8b-gpio
    resources:
      - {type: irq, start: 72}
`))
	require.Nil(t, err)
	require.Len(t, devs, 2)
	ctl := newController()
	b := platform.NewBus()
	for _, dev := range devs {
		require.Nil(t, b.Add(dev))
	}
	require.Nil(t, b.Register(platform.NewDriver(ctl, nil)))
	for _, dev := range devs {
		inst, ok := b.Instance(dev.Name)
		require.True(t, ok, dev.Name)
		assert.Len(t, inst.Virqs, platform.IRQLines)
	}
	assert.Equal(t, 2, ctl.Len())
	require.Nil(t, b.Close())
}

func TestProbePlatformData(t *testing.T) {
	drv := platform.NewDriver(newController(), nil)
	dev := platform.DefaultDevice()
	dev.Compatible = []string{"vendor,other"}
	_, err := drv.Probe(dev)
	assert.True(t, errors.Is(err, platform.ErrNoPlatformData))

	dev.PlatformData = &platform.Data{Regs: &platform.RegOffsets{Revision: 2}}
	inst, err := drv.Probe(dev)
	require.Nil(t, err)
	assert.Equal(t, uint16(2), inst.Data.Regs.Revision)

	// match data takes precedence
	dev2 := platform.DefaultDevice()
	dev2.Node = "/soc/gpio2"
	dev2.PlatformData = &platform.Data{Regs: &platform.RegOffsets{Revision: 2}}
	inst, err = drv.Probe(dev2)
	require.Nil(t, err)
	assert.Equal(t, uint16(1), inst.Data.Regs.Revision)
}

func TestDeviceResource(t *testing.T) {
	dev := &platform.Device{Resources: []platform.Resource{
		{Type: platform.ResourceIRQ, Start: 1},
		{Type: platform.ResourceMem, Start: 2},
		{Type: platform.ResourceIRQ, Start: 3},
	}}
	r, ok := dev.Resource(platform.ResourceIRQ, 1)
	assert.True(t, ok)
	assert.Equal(t, 3, r.Start)
	r, ok = dev.Resource(platform.ResourceMem, 0)
	assert.True(t, ok)
	assert.Equal(t, 2, r.Start)
	_, ok = dev.Resource(platform.ResourceIRQ, 2)
	assert.False(t, ok)
}

func TestBus(t *testing.T) {
	ctl := newController()
	b := platform.NewBus()
	good := platform.DefaultDevice()
	bad := platform.DefaultDevice()
	bad.Name = "noirq"
	bad.Node = "/soc/noirq"
	bad.Resources = nil
	other := &platform.Device{Name: "uart", Compatible: []string{"amlogic,meson-uart"}}

	// no drivers yet, so nothing is probed
	require.Nil(t, b.Add(good))
	require.Nil(t, b.Add(bad))
	require.Nil(t, b.Add(other))
	assert.Equal(t, 0, ctl.adds)

	err := b.Register(platform.NewDriver(ctl, nil))
	assert.True(t, errors.Is(err, mesongpio.ErrNoResource))
	assert.Equal(t, 1, ctl.adds)
	inst, ok := b.Instance(good.Name)
	assert.True(t, ok)
	assert.Len(t, inst.Virqs, 8)
	_, ok = b.Instance(bad.Name)
	assert.False(t, ok)
	_, ok = b.Instance(other.Name)
	assert.False(t, ok)
	assert.Len(t, b.Devices(), 3)

	// added after registration
	late := platform.DefaultDevice()
	late.Name = "late"
	late.Node = "/soc/late"
	require.Nil(t, b.Add(late))
	_, ok = b.Instance("late")
	assert.True(t, ok)
	assert.Equal(t, 2, ctl.Len())

	require.Nil(t, b.Close())
	assert.Equal(t, 0, ctl.Len())
	_, ok = b.Instance(good.Name)
	assert.False(t, ok)
}

func TestLoadDevices(t *testing.T) {
	devs, err := platform.LoadDevices(strings.NewReader(`
devices:
  - name: c1109880.gpio
    node: /soc/gpio@c1109880
    compatible: ["amlogic,m8b-gpio"]
    resources:
      - {type: mem, name: regs, start: 0xc1109880, end: 0xc1109fff}
      - {type: irq, start: 64}
  - name: custom
    revision: 3
`))
	require.Nil(t, err)
	require.Len(t, devs, 2)
	d := devs[0]
	assert.Equal(t, "c1109880.gpio", d.Name)
	assert.Equal(t, "/soc/gpio@c1109880", d.Node)
	assert.Equal(t, []string{"amlogic,m8b-gpio"}, d.Compatible)
	require.Len(t, d.Resources, 2)
	assert.Equal(t, platform.ResourceMem, d.Resources[0].Type)
	assert.Equal(t, 0xc1109880, d.Resources[0].Start)
	assert.Equal(t, platform.ResourceIRQ, d.Resources[1].Type)
	assert.Equal(t, 64, d.Resources[1].End)
	assert.Nil(t, d.PlatformData)

	d = devs[1]
	assert.Equal(t, "/custom", d.Node)
	require.NotNil(t, d.PlatformData)
	assert.Equal(t, uint16(3), d.PlatformData.Regs.Revision)

	devs, err = platform.LoadDevices(strings.NewReader(""))
	assert.Nil(t, err)
	assert.Empty(t, devs)

	_, err = platform.LoadDevices(strings.NewReader("devices:\n  - name: x\n    resources: [{type: dma}]\n"))
	assert.NotNil(t, err)
	_, err = platform.LoadDevices(strings.NewReader("devices:\n  - node: /x\n"))
	assert.NotNil(t, err)
	_, err = platform.LoadDevices(strings.NewReader("devices:\n  - name: x\n    bogus: 1\n"))
	assert.NotNil(t, err)
}

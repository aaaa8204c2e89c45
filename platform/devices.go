// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package platform

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultDevice is the m8b GPIO controller as described by the stock
// device tree.
func DefaultDevice() *Device {
	return &Device{
		Name:       "c1109880.gpio",
		Node:       "/soc/gpio@c1109880",
		Compatible: []string{"amlogic,m8b-gpio"},
		Resources: []Resource{
			{Type: ResourceMem, Name: "regs", Start: 0xc1109880, End: 0xc1109fff},
			{Type: ResourceIRQ, Name: "gpio", Start: 64, End: 71},
		},
	}
}

type deviceFile struct {
	Devices []deviceEntry `yaml:"devices"`
}

type deviceEntry struct {
	Name       string          `yaml:"name"`
	Node       string          `yaml:"node"`
	Compatible []string        `yaml:"compatible"`
	Resources  []resourceEntry `yaml:"resources"`
	// Revision provides platform data for devices that don't match.
	Revision *uint16 `yaml:"revision"`
}

type resourceEntry struct {
	Type  string `yaml:"type"`
	Name  string `yaml:"name"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
}

var resourceTypes = map[string]ResourceType{
	"mem": ResourceMem,
	"irq": ResourceIRQ,
}

// LoadDevices reads device descriptions from YAML, e.g.
//
//	devices:
//	  - name: c1109880.gpio
//	    node: /soc/gpio@c1109880
//	    compatible: ["amlogic,m8b-gpio"]
//	    resources:
//	      - {type: irq, start: 64, end: 71}
func LoadDevices(r io.Reader) ([]*Device, error) {
	var df deviceFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&df); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decode devices")
	}
	devs := make([]*Device, 0, len(df.Devices))
	for i, e := range df.Devices {
		if e.Name == "" {
			return nil, errors.Errorf("device %d: missing name", i)
		}
		dev := &Device{
			Name:       e.Name,
			Node:       e.Node,
			Compatible: e.Compatible,
		}
		if dev.Node == "" {
			dev.Node = "/" + e.Name
		}
		for _, re := range e.Resources {
			t, ok := resourceTypes[strings.ToLower(re.Type)]
			if !ok {
				return nil, errors.Errorf("device %s: unknown resource type '%s'", e.Name, re.Type)
			}
			end := re.End
			if end < re.Start {
				end = re.Start
			}
			dev.Resources = append(dev.Resources, Resource{Type: t, Name: re.Name, Start: re.Start, End: end})
		}
		if e.Revision != nil {
			dev.PlatformData = &Data{Regs: &RegOffsets{Revision: *e.Revision}}
		}
		devs = append(devs, dev)
	}
	return devs, nil
}

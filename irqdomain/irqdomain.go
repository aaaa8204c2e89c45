// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package irqdomain maps the hardware interrupt lines of a controller into
// a space of virtual IRQ numbers.
//
// A Registry hands out virtual IRQs to the linear domains created on it,
// avoiding collisions between domains.
package irqdomain

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var (
	// ErrInvalidHwirq indicates a hardware IRQ outside the domain.
	ErrInvalidHwirq = errors.New("hwirq out of range")

	// ErrInvalidVirq indicates a virtual IRQ not mapped by the domain.
	ErrInvalidVirq = errors.New("virq not mapped")

	// ErrDomainExists indicates a domain is already registered for a node.
	ErrDomainExists = errors.New("domain already exists")

	// ErrRemoved indicates the domain has been removed.
	ErrRemoved = errors.New("domain removed")

	// ErrInvalidSize indicates a domain with no lines.
	ErrInvalidSize = errors.New("invalid domain size")
)

// Controller creates interrupt domains.
type Controller interface {
	// AddLinear creates a domain of size lines for the node.
	AddLinear(node string, size int, ops *Ops) (Domain, error)
}

// Domain maps hardware IRQs of a single controller to virtual IRQs.
type Domain interface {
	Node() string
	Size() int
	// CreateMapping maps the hwirq and returns its virq.
	// Mapping an already mapped hwirq returns the existing virq.
	CreateMapping(hwirq int) (int, error)
	FindMapping(hwirq int) (int, bool)
	// Xlate translates an interrupt specifier using the domain's Ops.
	Xlate(intspec []uint32) (hwirq int, trigger uint32, err error)
	SetLockClass(virq int, class *LockClass) error
	SetChipData(virq int, data interface{}) error
	MarkValid(virq int) error
	// Remove disposes of all mappings and the domain itself.
	Remove() error
}

// LockClass separates the locks of a set of interrupts from those of
// interrupts elsewhere in the hierarchy, so nesting them is not mistaken
// for recursion.  Classes are compared by identity.
type LockClass struct {
	name string
}

// NewLockClass creates a new LockClass.
func NewLockClass(name string) *LockClass {
	return &LockClass{name: name}
}

func (c *LockClass) String() string {
	return c.name
}

// Ops are the domain specific operations.
type Ops struct {
	// Xlate translates an interrupt specifier into a hwirq and trigger type.
	Xlate func(d Domain, intspec []uint32) (hwirq int, trigger uint32, err error)
}

// XlateOneCell translates a single cell specifier, which is the hwirq,
// with no trigger type.
func XlateOneCell(d Domain, intspec []uint32) (int, uint32, error) {
	if len(intspec) < 1 {
		return 0, 0, errors.New("empty interrupt specifier")
	}
	hwirq := int(intspec[0])
	if hwirq >= d.Size() {
		return 0, 0, errors.Wrapf(ErrInvalidHwirq, "hwirq %d", hwirq)
	}
	return hwirq, 0, nil
}

// OneCellOps are Ops that translate one cell interrupt specifiers.
var OneCellOps = &Ops{Xlate: XlateOneCell}

// Desc describes a mapped virtual IRQ.
type Desc struct {
	Virq      int
	Hwirq     int
	Node      string
	LockClass *LockClass
	ChipData  interface{}
	Valid     bool
}

// Registry is a Controller that allocates virtual IRQs from a base.
type Registry struct {
	mu      sync.Mutex
	next    int
	descs   map[int]*Desc
	domains map[string]*linear
}

// NewRegistry creates a Registry that allocates virtual IRQs from base.
// Virtual IRQ 0 is never allocated.
func NewRegistry(base int) *Registry {
	if base < 1 {
		base = 1
	}
	return &Registry{
		next:    base,
		descs:   make(map[int]*Desc),
		domains: make(map[string]*linear),
	}
}

// AddLinear creates a domain of size lines for the node.
func (r *Registry) AddLinear(node string, size int, ops *Ops) (Domain, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "size %d", size)
	}
	if ops == nil {
		ops = OneCellOps
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.domains[node]; ok {
		return nil, errors.Wrapf(ErrDomainExists, "node %s", node)
	}
	d := &linear{
		r:     r,
		node:  node,
		ops:   ops,
		virqs: make([]int, size),
	}
	r.domains[node] = d
	return d, nil
}

// Find returns the domain registered for node.
func (r *Registry) Find(node string) (Domain, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.domains[node]
	if !ok {
		return nil, false
	}
	return d, true
}

// Len returns the number of domains in the registry.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.domains)
}

// Desc returns a copy of the descriptor of the virq.
func (r *Registry) Desc(virq int) (Desc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descs[virq]
	if !ok {
		return Desc{}, false
	}
	return *d, true
}

// allocate assumes the caller holds mu.
func (r *Registry) allocate() int {
	for {
		if _, used := r.descs[r.next]; !used {
			v := r.next
			r.next++
			return v
		}
		r.next++
	}
}

type linear struct {
	r    *Registry
	node string
	ops  *Ops
	// virqs indexed by hwirq, 0 if unmapped.
	virqs   []int
	removed bool
}

func (d *linear) Node() string {
	return d.node
}

func (d *linear) Size() int {
	return len(d.virqs)
}

func (d *linear) Xlate(intspec []uint32) (int, uint32, error) {
	return d.ops.Xlate(d, intspec)
}

func (d *linear) CreateMapping(hwirq int) (int, error) {
	if hwirq < 0 || hwirq >= len(d.virqs) {
		return 0, errors.Wrapf(ErrInvalidHwirq, "hwirq %d", hwirq)
	}
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	if d.removed {
		return 0, ErrRemoved
	}
	if v := d.virqs[hwirq]; v != 0 {
		return v, nil
	}
	v := d.r.allocate()
	d.r.descs[v] = &Desc{Virq: v, Hwirq: hwirq, Node: d.node}
	d.virqs[hwirq] = v
	return v, nil
}

func (d *linear) FindMapping(hwirq int) (int, bool) {
	if hwirq < 0 || hwirq >= len(d.virqs) {
		return 0, false
	}
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	v := d.virqs[hwirq]
	return v, v != 0
}

// update applies fn to the descriptor of a virq mapped by this domain.
func (d *linear) update(virq int, fn func(*Desc)) error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	if d.removed {
		return ErrRemoved
	}
	desc, ok := d.r.descs[virq]
	if !ok || desc.Node != d.node {
		return errors.Wrapf(ErrInvalidVirq, "virq %d", virq)
	}
	fn(desc)
	return nil
}

func (d *linear) SetLockClass(virq int, class *LockClass) error {
	return d.update(virq, func(desc *Desc) { desc.LockClass = class })
}

func (d *linear) SetChipData(virq int, data interface{}) error {
	return d.update(virq, func(desc *Desc) { desc.ChipData = data })
}

func (d *linear) MarkValid(virq int) error {
	return d.update(virq, func(desc *Desc) { desc.Valid = true })
}

func (d *linear) dispose(virq int) error {
	if _, ok := d.r.descs[virq]; !ok {
		return errors.Wrapf(ErrInvalidVirq, "virq %d", virq)
	}
	delete(d.r.descs, virq)
	return nil
}

func (d *linear) Remove() (err error) {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	if d.removed {
		return ErrRemoved
	}
	for hwirq, v := range d.virqs {
		if v != 0 {
			err = multierr.Append(err, d.dispose(v))
			d.virqs[hwirq] = 0
		}
	}
	d.removed = true
	delete(d.r.domains, d.node)
	return err
}

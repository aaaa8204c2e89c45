// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mesongpio

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Allocator is the lower level GPIO allocator that performs the line
// operations once the Gateway has checked ownership.
//
// Errors are expected to be unix.Errno values, or wrap them, with
// unix.EBUSY indicating the line is already requested.
// Allocator methods must not call back into the Gateway.
type Allocator interface {
	Request(pin int, label string) error
	RequestOne(pin int, flags RequestFlags, label string) error
	Free(pin int) error
	DirectionInput(pin int) error
	DirectionOutput(pin int, value Level) error
	Value(pin int) (Level, error)
	SetValue(pin int, value Level) error
	// ToIRQ returns the virtual IRQ for the pin, configured for trigger.
	ToIRQ(pin int, trigger Trigger) (int, error)
}

// Request describes one entry of a RequestArray or FreeArray.
type Request struct {
	Pin   int
	Flags RequestFlags
	Label string
}

// Gateway gates access to the pins of a chip by owner.
type Gateway struct {
	catalog *Catalog
	alloc   Allocator
	logger  *zap.Logger

	// mu covers owners and the allocator calls made after checking them,
	// including IRQ resolution.
	mu     sync.Mutex
	owners []string

	pullmu sync.RWMutex
	pull   PullController
}

// Option modifies the construction of a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger that receives ownership conflicts and other
// diagnostics. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// WithPullController registers the controller used for pull up/down.
func WithPullController(pc PullController) Option {
	return func(g *Gateway) {
		g.pull = pc
	}
}

// New creates a Gateway for the pins in the catalog, forwarding line
// operations to alloc.
func New(catalog *Catalog, alloc Allocator, options ...Option) *Gateway {
	g := &Gateway{
		catalog: catalog,
		alloc:   alloc,
		logger:  zap.NewNop(),
		owners:  make([]string, catalog.Len()),
	}
	for _, o := range options {
		o(g)
	}
	return g
}

// MaxPin returns the number of pins managed by the Gateway.
func (g *Gateway) MaxPin() int {
	return g.catalog.Len()
}

// Name returns the display name of the pin.
func (g *Gateway) Name(pin int) string {
	return g.catalog.Name(pin)
}

// Lookup returns the number of the pin with the given name.
func (g *Gateway) Lookup(name string) (int, bool) {
	return g.catalog.Lookup(name)
}

func (g *Gateway) validateRequest(pin int, label string) error {
	if err := g.validate(pin); err != nil {
		return err
	}
	if label == "" {
		return errors.Wrapf(ErrNoLabel, "pin %s", g.catalog.Name(pin))
	}
	return nil
}

func (g *Gateway) validate(pin int) error {
	if pin < 0 || pin >= g.catalog.Len() {
		g.logger.Warn("gpio out of range", zap.Int("pin", pin), zap.Int("max", g.catalog.Len()))
		return errors.Wrapf(ErrRange, "pin %d", pin)
	}
	return nil
}

// checkOwner assumes the caller holds mu.
func (g *Gateway) checkOwner(pin int, owner string) error {
	switch g.owners[pin] {
	case "":
		return errors.Wrapf(ErrNotOwned, "pin %s", g.catalog.Name(pin))
	case owner:
		return nil
	default:
		return errors.Wrapf(ErrOwnerMismatch, "pin %s", g.catalog.Name(pin))
	}
}

// Request requests the pin from the allocator and, if successful, records
// label as its owner.
func (g *Gateway) Request(pin int, label string) error {
	if err := g.validateRequest(pin, label); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.claim(pin, label, g.alloc.Request(pin, label))
}

// RequestOne requests the pin, configured according to flags, and
// if successful records label as its owner.
func (g *Gateway) RequestOne(pin int, flags RequestFlags, label string) error {
	if err := g.validateRequest(pin, label); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.claim(pin, label, g.alloc.RequestOne(pin, flags, label))
}

// claim records the owner given the result of the allocator request.
// Assumes the caller holds mu.
func (g *Gateway) claim(pin int, label string, err error) error {
	if err == nil {
		g.owners[pin] = label
		return nil
	}
	if errors.Is(err, unix.EBUSY) {
		g.logger.Warn("gpio in use",
			zap.Int("pin", pin),
			zap.String("name", g.catalog.Name(pin)),
			zap.String("owner", g.owners[pin]),
			zap.String("requester", label))
		return errors.Wrapf(ErrBusy, "pin %s owned by %q", g.catalog.Name(pin), g.owners[pin])
	}
	return err
}

// RequestArray requests a set of pins.
//
// If any request fails then the pins already requested are released,
// in reverse order, and the error for the failed request is returned.
func (g *Gateway) RequestArray(reqs []Request) error {
	for i, r := range reqs {
		if err := g.RequestOne(r.Pin, r.Flags, r.Label); err != nil {
			for j := i - 1; j >= 0; j-- {
				g.release(reqs[j].Pin)
			}
			return err
		}
	}
	return nil
}

// release frees the pin, whoever owns it.
func (g *Gateway) release(pin int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owners[pin] == "" {
		return nil
	}
	return g.free(pin)
}

// free releases the pin from the allocator, and clears the owner only if
// that succeeds. Assumes the caller holds mu.
func (g *Gateway) free(pin int) error {
	if err := g.alloc.Free(pin); err != nil {
		return err
	}
	g.owners[pin] = ""
	return nil
}

// Free releases the pin, which must be owned by owner.
//
// If the allocator fails to free the pin then it remains owned.
func (g *Gateway) Free(pin int, owner string) error {
	if err := g.validate(pin); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkOwner(pin, owner); err != nil {
		if errors.Is(err, ErrOwnerMismatch) {
			g.logger.Warn("gpio free by non-owner",
				zap.Int("pin", pin),
				zap.String("name", g.catalog.Name(pin)),
				zap.String("owner", g.owners[pin]),
				zap.String("requester", owner))
		}
		return err
	}
	return g.free(pin)
}

// FreeArray frees a set of pins, each owned by the Label of its entry.
//
// Freeing stops at the first failure, which is returned.
// Pins freed before the failure remain free, and pins after it remain owned.
func (g *Gateway) FreeArray(reqs []Request) error {
	for _, r := range reqs {
		if err := g.Free(r.Pin, r.Label); err != nil {
			return err
		}
	}
	return nil
}

// Release frees all owned pins, regardless of owner.
// Intended for use when the chip is being removed.
func (g *Gateway) Release() (err error) {
	for pin := range g.owners {
		err = multierr.Append(err, g.release(pin))
	}
	return err
}

// Owner returns the owner of the pin, or "" if the pin is not owned.
func (g *Gateway) Owner(pin int) (string, error) {
	if err := g.validate(pin); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owners[pin], nil
}

// gated performs fn if the pin is valid and owned by owner.
func (g *Gateway) gated(pin int, owner string, fn func() error) error {
	if err := g.validate(pin); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkOwner(pin, owner); err != nil {
		return err
	}
	return fn()
}

// DirectionInput sets the pin as an input.
func (g *Gateway) DirectionInput(pin int, owner string) error {
	return g.gated(pin, owner, func() error {
		return g.alloc.DirectionInput(pin)
	})
}

// DirectionOutput sets the pin as an output driving value.
func (g *Gateway) DirectionOutput(pin int, owner string, value Level) error {
	return g.gated(pin, owner, func() error {
		return g.alloc.DirectionOutput(pin, value)
	})
}

// Value returns the current level of the pin.
func (g *Gateway) Value(pin int, owner string) (level Level, err error) {
	err = g.gated(pin, owner, func() error {
		level, err = g.alloc.Value(pin)
		return err
	})
	return level, err
}

// SetValue sets the level of an output pin.
func (g *Gateway) SetValue(pin int, value Level, owner string) error {
	return g.gated(pin, owner, func() error {
		return g.alloc.SetValue(pin, value)
	})
}

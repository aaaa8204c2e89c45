// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mesongpio

import (
	"github.com/pkg/errors"
)

// PullController programs the pull up/down resistors of the chip.
type PullController interface {
	SetPull(pin int, pull Pull) error
}

// RegisterPullController sets the controller used for pull up/down,
// replacing any previously registered. A nil pc removes pull control.
func (g *Gateway) RegisterPullController(pc PullController) {
	g.pullmu.Lock()
	g.pull = pc
	g.pullmu.Unlock()
}

// SetPullUpDown sets the pull of the pin.
//
// Note that the pin must be owned, but not necessarily by owner.
func (g *Gateway) SetPullUpDown(pin int, pull Pull, owner string) error {
	return g.setPull(pin, pull, owner)
}

// DisablePullUp disables any pull on the pin, leaving it floating.
//
// Note that the pin must be owned, but not necessarily by owner.
func (g *Gateway) DisablePullUp(pin int, owner string) error {
	return g.setPull(pin, PullNone, owner)
}

func (g *Gateway) setPull(pin int, pull Pull, owner string) error {
	if err := g.validate(pin); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owners[pin] == "" {
		return errors.Wrapf(ErrNotOwned, "pin %s", g.catalog.Name(pin))
	}
	if owner == "" {
		return errors.Wrapf(ErrOwnerMismatch, "pin %s", g.catalog.Name(pin))
	}
	g.pullmu.RLock()
	pc := g.pull
	g.pullmu.RUnlock()
	if pc == nil {
		return ErrNoPullControl
	}
	return pc.SetPull(pin, pull)
}

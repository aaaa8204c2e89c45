// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mesongpio

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	// ErrRange indicates the pin is outside the range of the catalog.
	ErrRange = errors.New("pin out of range")

	// ErrNoLabel indicates a request without an owner label.
	ErrNoLabel = errors.New("missing owner label")

	// ErrBusy indicates the pin is already owned.
	ErrBusy = errors.New("pin busy")

	// ErrNotOwner is the common cause of ErrNotOwned and ErrOwnerMismatch,
	// for callers that need not distinguish the two.
	ErrNotOwner = errors.New("not pin owner")

	// ErrNotOwned indicates the pin has no owner.
	ErrNotOwned = ownerError{"pin not owned"}

	// ErrOwnerMismatch indicates the pin is owned by someone else.
	ErrOwnerMismatch = ownerError{"pin owned by another"}

	// ErrNoResource indicates a required interrupt resource is unavailable.
	ErrNoResource = errors.New("resource unavailable")

	// ErrNoPullControl indicates no PullController has been registered.
	ErrNoPullControl = errors.New("pull control unavailable")
)

type ownerError struct {
	msg string
}

func (e ownerError) Error() string {
	return e.msg
}

func (e ownerError) Is(target error) bool {
	return target == ErrNotOwner
}

// Errno returns the negative errno corresponding to err, following the
// kernel convention that 0 is success.
func Errno(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, ErrRange), errors.Is(err, ErrNoLabel):
		return -int(unix.EINVAL)
	case errors.Is(err, ErrBusy):
		return -int(unix.EBUSY)
	case errors.Is(err, ErrNotOwned):
		return -int(unix.EPERM)
	case errors.Is(err, ErrOwnerMismatch):
		return -int(unix.EACCES)
	case errors.Is(err, ErrNotOwner):
		return -int(unix.EPERM)
	case errors.Is(err, ErrNoResource):
		return -int(unix.ENODEV)
	case errors.Is(err, ErrNoPullControl):
		return -int(unix.EOPNOTSUPP)
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return -int(errno)
	}
	return -int(unix.EIO)
}

// Package proc provides process liveness probing.
//
// A Prober answers whether a process id currently exists without delivering
// any signal capable of perturbing the target. It's a small pluggable
// capability so the platform-specific inspection mechanism can be swapped
// out without touching callers.
package proc

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Prober checks whether a process id currently exists.
type Prober interface {
	Exists(pid int) bool
}

// UnixProber probes liveness by sending signal 0, which performs the kernel's
// existence and permission checks without delivering anything to the target.
type UnixProber struct{}

// Exists reports whether pid exists. A permission error means the process
// exists but is owned by someone else, so it's conservatively treated as
// alive rather than falsely reporting death.
func (UnixProber) Exists(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}

	if errors.Is(err, unix.EPERM) {
		return true
	}

	// ESRCH and anything else unexpected.
	return false
}

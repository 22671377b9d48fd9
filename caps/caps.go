/*
Provides helper functions for checking if we have some functional sets of capabilities.
*/
package caps

import (
	"os"
	"runtime"

	"github.com/syndtr/gocapability/capability"
)

func Scan() *Fulcrum {
	f := &Fulcrum{}
	f.onLinux = runtime.GOOS == "linux"
	f.ourUID = os.Getuid()
	if f.onLinux {
		c, err := capability.NewPid2(0) // zero means self
		if err == nil {
			err = c.Load()
		}
		if err == nil {
			f.ourCaps = c
		}
		// If we can't read our own caps, ourCaps stays nil and we fall back to the uid check.
	}
	return f
}

type Fulcrum struct {
	onLinux bool
	ourUID  int
	ourCaps capability.Capabilities // nil when not on linux or unreadable (causing the uid==0 fallback).
}

func (f Fulcrum) has(which capability.Cap) bool {
	if f.ourCaps == nil {
		return f.ourUID == 0
	}
	return f.ourCaps.Get(capability.EFFECTIVE, which)
}

// Whether we can chroot into a prepared rootfs and run its package manager.
// This requires "have CAP_SYS_CHROOT"; or, where caps are unknowable, uid==0.
func (f Fulcrum) CanChroot() bool {
	return f.has(capability.CAP_SYS_CHROOT)
}

// Whether file modes stop us.  Root (or CAP_DAC_OVERRIDE) can write read-only files,
// so tests about read-only trees are meaningless there.
func (f Fulcrum) IgnoresFilePerms() bool {
	return f.has(capability.CAP_DAC_OVERRIDE)
}

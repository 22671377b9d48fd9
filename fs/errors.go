package fs

import (
	"os"
	"syscall"

	. "github.com/warpfork/go-errcat"
)

type ErrorCategory string

const (
	ErrIOUnknown     = ErrorCategory("fs-io-unknown")     // Catchall.
	ErrNotExists     = ErrorCategory("fs-not-exists")     // Path does not exist.
	ErrAlreadyExists = ErrorCategory("fs-already-exists") // Path already exists; creation refused.
	ErrNotDir        = ErrorCategory("fs-not-dir")        // A path component is not a dir.
	ErrPermission    = ErrorCategory("fs-permission")     // The process lacks permission.
	ErrRecursion     = ErrorCategory("fs-recursion")      // Symlinks point in a cycle.

	/*
		Returned when an operation would leave the filesystem's base path,
		either by '..' segments or by traversing a symlink that points out.

		Any function returning ErrBreakout does so in a best-effort sense:
		concurrent modification of the base path by other processes can
		always race with the check.
	*/
	ErrBreakout = ErrorCategory("fs-breakout")
)

/*
Normalize an os-package error into one of our categories.
Nil in, nil out.
*/
func NormalizeIOError(err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return Errorf(ErrNotExists, "%s", err)
	case os.IsExist(err):
		return Errorf(ErrAlreadyExists, "%s", err)
	case os.IsPermission(err):
		return Errorf(ErrPermission, "%s", err)
	}
	if pe, ok := err.(*os.PathError); ok && pe.Err == syscall.ENOTDIR {
		return Errorf(ErrNotDir, "%s", err)
	}
	return Errorf(ErrIOUnknown, "%s", err)
}

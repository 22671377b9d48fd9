package fs

import (
	"io"
	"time"
)

/*
Interface for all primitive functions we expect to be able to perform
on a filesystem.

All paths accepted are RelPath types; typically the FS instance
is constructed with an AbsolutePath, and all further operations are
joined with that base path.
*/
type FS interface {
	// The AbsolutePath this filesystem is rooted at.  Useful for messages.
	BasePath() AbsolutePath

	OpenFile(path RelPath, flag int, perms Perms) (File, error)
	Mkdir(path RelPath, perms Perms) error
	Chmod(path RelPath, perms Perms) error
	SetTimesNano(path RelPath, mtime time.Time, atime time.Time) error

	Stat(path RelPath) (*Metadata, error)
	LStat(path RelPath) (*Metadata, error)
	ReadDirNames(path RelPath) ([]string, error)

	// Returns the symlink target, true, and nil if the path is a symlink;
	// empty string, false, and nil if it exists but is not a symlink.
	Readlink(path RelPath) (string, bool, error)

	/*
		Resolve a symlink target string as if the link were found at `startingAt`,
		treating the filesystem's base path as root.

		Missing path segments are fine: the joined path is returned as far
		as it was resolvable; callers must still check for existence.
	*/
	ResolveLink(symlink string, startingAt RelPath) (RelPath, error)
}

type File interface {
	io.Reader
	io.Writer
	io.Closer
}

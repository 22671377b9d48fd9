package fsOp

import (
	"fmt"
	"io"
	"os"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg/fs"
)

/*
Places a file on the filesystem.
Replicates the type, permissions, and mtime described in the metadata.

The path within the filesystem is `fmeta.Name` (conventionally, this means
the filesystem will join the `fmeta.Name` with the absolute base path
it was constructed with).

Only files and dirs can be placed.  Symlinks, hardlinks, and device nodes
are the caller's problem (the extractor materializes links as copies; the
others it skips).

No symlinks may be traversed during any part of `fmeta.Name`; this is
considered malformed input and will result in ErrBreakout.

A dir which already exists is accepted and has its attributes re-applied;
this is necessary because archives may mention a dir after entries inside
it already caused it to be conjured.
*/
func PlaceFile(afs fs.FS, fmeta fs.Metadata, body io.Reader) error {
	// First, no part of the path may be a symlink.
	for _, path := range append(fmeta.Name.SplitParent(), fmeta.Name) {
		target, isSymlink, err := afs.Readlink(path)
		switch Category(err) {
		case nil:
			if isSymlink {
				return Errorf(fs.ErrBreakout, "refusing to traverse symlink at %q->%q while placing %q in %q",
					path, target, fmeta.Name, afs.BasePath())
			}
		case fs.ErrNotExists:
			// not existing is fine.
		default:
			return err // any other unknown error means we lack perms or something: reject.
		}
	}

	// Fill in the content.
	switch fmeta.Type {
	case fs.Type_Invalid:
		panic(fmt.Errorf("invalid fs.Metadata.Type; partially constructed object?"))
	case fs.Type_File:
		file, err := afs.OpenFile(fmeta.Name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fmeta.Perms)
		if err != nil {
			return err
		}
		if body != nil {
			if _, err := io.Copy(file, body); err != nil {
				file.Close()
				return fs.NormalizeIOError(err)
			}
		}
		if err := file.Close(); err != nil {
			return fs.NormalizeIOError(err)
		}
	case fs.Type_Dir:
		// There is no race-free path through this, unless you know of a way to lstat and mkdir in the same syscall.
		if existing, err := afs.LStat(fmeta.Name); err == nil && existing.Type == fs.Type_Dir {
			break
		}
		if err := afs.Mkdir(fmeta.Name, fmeta.Perms); err != nil {
			return err
		}
	default:
		return Errorf(fs.ErrIOUnknown, "placefile: cannot place %q: unsupported type %s", fmeta.Name, fmeta.Type)
	}

	// OpenFile and Mkdir only apply perms on creation; say it again for the existing case.
	if err := afs.Chmod(fmeta.Name, fmeta.Perms); err != nil {
		return err
	}
	if !fmeta.Mtime.IsZero() {
		if err := afs.SetTimesNano(fmeta.Name, fmeta.Mtime, fs.DefaultAtime); err != nil {
			return err
		}
	}
	return nil
}

package fsOp

import (
	"os"
	"path/filepath"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg/fs"
)

/*
Recursively removes a path, like `os.RemoveAll`, but is not stopped
by read-only dirs: base archives routinely contain them (e.g. `/proc`,
`/var/empty`), and a tree extracted by an unprivileged user then can't
be emptied.

The strategy is: try the delete; if it failed on permissions, make every dir
in the tree owner-writable and try once more.

A path that does not exist is not an error.
*/
func RemoveAll(path string) error {
	err := os.RemoveAll(path)
	if err == nil || !os.IsPermission(err) {
		return fs.NormalizeIOError(err)
	}
	if fixErr := makeTreeWritable(path); fixErr != nil {
		return Errorf(fs.ErrPermission, "cannot remove %s: %s (and could not fix perms: %s)", path, err, fixErr)
	}
	return fs.NormalizeIOError(os.RemoveAll(path))
}

func makeTreeWritable(root string) error {
	// filepath.Walk calls us on a dir *before* reading its children,
	//  so fixing the dir's mode here is early enough for the walk itself to get in.
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() && info.Mode().Perm()&0700 != 0700 {
			return os.Chmod(path, info.Mode().Perm()|0700)
		}
		return nil
	})
}

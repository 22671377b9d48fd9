package fsOp

import (
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg/fs"
)

/*
Make the dir at path, and any missing parents, with the given perms.

Dirs that already exist are not touched.  Anything else in the way,
including a symlink (dangling or not), is an ErrNotDir: links are never
followed, so the dirs made are always inside the filesystem.
*/
func MkdirAll(afs fs.FS, path fs.RelPath, perms fs.Perms) error {
	for _, p := range append(path.SplitParent(), path) {
		if p == (fs.RelPath{}) {
			continue
		}
		stat, err := afs.LStat(p)
		switch {
		case err == nil && stat.Type == fs.Type_Dir:
			continue
		case err == nil:
			return Errorf(fs.ErrNotDir, "cannot make dir %s: a %s is in the way", afs.BasePath().Join(p), stat.Type)
		case Category(err) == fs.ErrNotExists:
			if err := afs.Mkdir(p, perms); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

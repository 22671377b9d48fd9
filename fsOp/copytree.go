package fsOp

import (
	"github.com/polydawn/labimg/fs"
)

/*
Deep-copies everything in srcFs into dstFs.

Files and dirs are copied with their perms and mtimes.  Dirs are created
owner-writable and only get their real perms back in a post-order pass,
so read-only dirs in the source don't stop us filling them.

Any other node type (symlinks, devices) is skipped: the trees we copy are
ones the extractor produced, which never contain them.

The dstFs base path may or may not exist yet; its parent must.
*/
func CopyTree(srcFs, dstFs fs.FS) error {
	preVisit := func(filenode *fs.FilewalkNode) error {
		if filenode.Err != nil {
			return filenode.Err
		}
		switch filenode.Info.Type {
		case fs.Type_File:
			fmeta, body, err := ScanFile(srcFs, filenode.Info.Name)
			if err != nil {
				return err
			}
			defer body.Close()
			return PlaceFile(dstFs, *fmeta, body)
		case fs.Type_Dir:
			fmeta := *filenode.Info
			fmeta.Perms |= 0700
			return PlaceFile(dstFs, fmeta, nil)
		default:
			return nil
		}
	}
	postVisit := func(filenode *fs.FilewalkNode) error {
		if filenode.Info.Type != fs.Type_Dir {
			return nil
		}
		if err := dstFs.Chmod(filenode.Info.Name, filenode.Info.Perms); err != nil {
			return err
		}
		return dstFs.SetTimesNano(filenode.Info.Name, filenode.Info.Mtime, fs.DefaultAtime)
	}
	return fs.Walk(srcFs, preVisit, postVisit)
}

package fs

import (
	"sort"
)

type WalkFunc func(filenode *FilewalkNode) error

type FilewalkNode struct {
	Info *Metadata
	Err  error
}

/*
Walks a filesystem.

This is much like the standard library's `path/filepath.Walk`,
except it supports both pre- and post-order visits,
and uses fs.RelPath (of course) to normalize path names.

The first node visited is always the base path itself, named `.`.
Siblings are visited in sorted order, so walks are deterministic.

Symlinks are not followed.

A preVisit func that sees a non-nil `filenode.Err` must either handle it
or return it; children of a node with an error are not expanded.
*/
func Walk(afs FS, preVisit WalkFunc, postVisit WalkFunc) error {
	return walk(afs, RelPath{}, preVisit, postVisit)
}

func walk(afs FS, path RelPath, preVisit WalkFunc, postVisit WalkFunc) error {
	node := &FilewalkNode{}
	node.Info, node.Err = afs.LStat(path)
	if preVisit != nil {
		if err := preVisit(node); err != nil {
			return err
		}
	}
	if node.Err == nil && node.Info.Type == Type_Dir {
		names, err := afs.ReadDirNames(path)
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, name := range names {
			if err := walk(afs, path.Join(MustRelPath(name)), preVisit, postVisit); err != nil {
				return err
			}
		}
	}
	if postVisit != nil {
		return postVisit(node)
	}
	return nil
}

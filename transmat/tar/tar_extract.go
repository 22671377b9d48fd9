package tartrans

import (
	"archive/tar"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/fs"
	"github.com/polydawn/labimg/fs/osfs"
	"github.com/polydawn/labimg/fsOp"
)

/*
Extract the archive at archivePath into destDir.

If destDir already exists, extraction is skipped, unless force is set,
in which case the existing tree is removed first.

Symlinks and hardlinks in the archive are materialized: whatever the
link points to in the tree extracted so far is copied to the link's path.
A link whose target has not (yet) been extracted becomes an empty file.
Device nodes and fifos are skipped.
*/
func Extract(
	ctx context.Context, // Long-running call.  Cancellable between entries.
	log logrus.FieldLogger,
	archivePath string, // Base archive; gzip, xz, bzip2, or plain tar.
	destDir string, // Where to put the tree.
	force bool, // Re-extract even if destDir exists.
) (err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))
	log = log.WithField("path", destDir)

	destDir, err = filepath.Abs(destDir)
	if err != nil {
		return Errorf(labimg.ErrBuild, "cannot extract: %s", err)
	}
	if _, err := os.Lstat(destDir); err == nil {
		if !force {
			log.Info("rootfs already extracted; reusing it")
			return nil
		}
		log.Info("removing existing rootfs for re-extraction")
		if err := fsOp.RemoveAll(destDir); err != nil {
			return Errorf(labimg.ErrBuild, "cannot clear %s for re-extraction: %s", destDir, err)
		}
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return Errorf(labimg.ErrBuild, "cannot open base archive: %s", err)
	}
	defer f.Close()

	// Extract beside destDir and move into place only when complete,
	//  so a failed run never leaves a tree that looks reusable.
	if err := os.MkdirAll(filepath.Dir(destDir), 0755); err != nil {
		return Errorf(labimg.ErrBuild, "cannot create %s: %s", filepath.Dir(destDir), err)
	}
	stageDir, err := ioutil.TempDir(filepath.Dir(destDir), "."+filepath.Base(destDir)+".partial-")
	if err != nil {
		return Errorf(labimg.ErrBuild, "cannot create staging dir for %s: %s", destDir, err)
	}
	defer func() {
		if err != nil {
			if rmErr := fsOp.RemoveAll(stageDir); rmErr != nil {
				log.WithField("path", stageDir).Warnf("could not remove partial extraction: %s", rmErr)
			}
		}
	}()
	if err := os.Chmod(stageDir, 0755); err != nil {
		return Errorf(labimg.ErrBuild, "cannot create staging dir for %s: %s", destDir, err)
	}

	log.WithField("archive", archivePath).Info("extracting base archive")
	n, err := extractTar(ctx, log, osfs.New(fs.MustAbsolutePath(stageDir)), f)
	if err != nil {
		return err
	}
	if err := os.Rename(stageDir, destDir); err != nil {
		return Errorf(labimg.ErrBuild, "cannot move extracted tree into place at %s: %s", destDir, err)
	}
	log.WithField("entries", n).Info("extraction complete")
	return nil
}

func extractTar(ctx context.Context, log logrus.FieldLogger, afs fs.FS, reader io.Reader) (n int, err error) {
	// Wrap input stream with decompression as necessary.
	reader2, err := Decompress(reader)
	if err != nil {
		return 0, Errorf(labimg.ErrBuild, "corrupt archive: unreadable compression: %s", err)
	}

	// Convert the raw byte reader to a tar stream.
	tr := tar.NewReader(reader2)

	// Explicit dir entries get their real perms and times in a pass at the end.
	var dirMetas []fs.Metadata

	// Iterate over each tar entry, mutating filesystem as we go.
	for {
		if err := labimg.CheckCancelled(ctx); err != nil {
			return n, err
		}
		thdr, err := tr.Next()
		if err == io.EOF {
			break // success!  end of archive.
		}
		if err != nil {
			return n, Errorf(labimg.ErrBuild, "corrupt archive: %s", err)
		}

		// Reshuffle metainfo to our default format.
		fmeta := fs.Metadata{}
		TarHdrToMetadata(thdr, &fmeta)
		fmeta.Name, err = sanitizeName(thdr.Name)
		if err != nil {
			return n, err
		}
		if fmeta.Type == fs.Type_Invalid {
			log.WithField("entry", thdr.Name).Debugf("skipping archive entry of unhandled type %q", thdr.Typeflag)
			continue
		}
		n++

		// Infer parents, if necessary.  The tar format allows implicit parent dirs.
		//  Dirs already present (explicit, conjured, or materialized from a link) are left be.
		if err := fsOp.MkdirAll(afs, fmeta.Name.Dir(), 0755); err != nil {
			return n, Errorf(labimg.ErrBuild, "error while extracting %q: %s", fmeta.Name, err)
		}

		// Place the entry.
		switch fmeta.Type {
		case fs.Type_File:
			err = fsOp.PlaceFile(afs, fmeta, tr)
		case fs.Type_Dir:
			dirMetas = append(dirMetas, fmeta)
			// Owner-writable for now, so children can land; real perms come after.
			placed := fmeta
			placed.Perms |= 0700
			err = fsOp.PlaceFile(afs, placed, nil)
		case fs.Type_Symlink, fs.Type_Hardlink:
			err = materializeLink(log, afs, fmeta)
		default:
			log.WithField("entry", thdr.Name).Debugf("skipping %s entry; the target environment makes its own", fmeta.Type)
		}
		if err != nil {
			return n, Errorf(labimg.ErrBuild, "error while extracting %q: %s", fmeta.Name, err)
		}
	}

	// Re-apply dir perms and times, deepest first.
	//  Files and dirs placed inside dirs cause the parent's mtime to update, so we have to re-pave them.
	sort.SliceStable(dirMetas, func(i, j int) bool {
		return dirMetas[i].Name.Plain() > dirMetas[j].Name.Plain()
	})
	for _, fmeta := range dirMetas {
		if err := afs.Chmod(fmeta.Name, fmeta.Perms); err != nil {
			return n, Errorf(labimg.ErrBuild, "error while extracting %q: %s", fmeta.Name, err)
		}
		if err := afs.SetTimesNano(fmeta.Name, fmeta.Mtime, fs.DefaultAtime); err != nil {
			return n, Errorf(labimg.ErrBuild, "error while extracting %q: %s", fmeta.Name, err)
		}
	}
	return n, nil
}

// Clean an entry name; leading slashes are dropped, leaving the archive root is rejected.
func sanitizeName(name string) (fs.RelPath, error) {
	p := path.Clean(strings.TrimLeft(name, "/"))
	if p == ".." || strings.HasPrefix(p, "../") {
		return fs.RelPath{}, Errorf(labimg.ErrBuild, "corrupt archive: entry %q uses '../' to leave the base dir", name)
	}
	return fs.MustRelPath(p), nil
}

/*
Replace a link entry with a copy of what it points at.

Symlink targets resolve the way the kernel would if the tree were the root
filesystem: relative to the link's dir, with absolute targets re-rooted.
Hardlink targets are always named relative to the archive root.

If something already exists at the link's path, the link is dropped.
*/
func materializeLink(log logrus.FieldLogger, afs fs.FS, fmeta fs.Metadata) error {
	log = log.WithFields(logrus.Fields{"entry": fmeta.Name.Plain(), "target": fmeta.Linkname})
	if _, err := afs.LStat(fmeta.Name); err == nil {
		log.Debug("link path already exists; keeping what is there")
		return nil
	}

	var target fs.RelPath
	switch fmeta.Type {
	case fs.Type_Symlink:
		var err error
		target, err = afs.ResolveLink(fmeta.Linkname, fmeta.Name)
		switch Category(err) {
		case nil:
		case fs.ErrNotExists, fs.ErrNotDir:
			log.Debug("link target not resolvable (yet); leaving an empty placeholder")
			return placeholder(afs, fmeta)
		default:
			return err
		}
	case fs.Type_Hardlink:
		target = fs.Rerooted(fmeta.Linkname)
	}

	stat, err := afs.LStat(target)
	switch {
	case err == nil && stat.Type == fs.Type_Dir:
		if target == (fs.RelPath{}) || strings.HasPrefix(fmeta.Name.Plain()+"/", target.Plain()+"/") {
			// Copying a dir into itself never terminates.
			log.Warn("link points at one of its own parents; leaving an empty dir")
			return fsOp.PlaceFile(afs, fs.Metadata{Name: fmeta.Name, Type: fs.Type_Dir, Perms: stat.Perms | 0700, Mtime: stat.Mtime}, nil)
		}
		log.Debug("materializing link to dir as a copy")
		base := afs.BasePath()
		return fsOp.CopyTree(osfs.New(base.Join(target)), osfs.New(base.Join(fmeta.Name)))
	case err == nil && stat.Type == fs.Type_File:
		log.Debug("materializing link to file as a copy")
		tmeta, body, err := fsOp.ScanFile(afs, target)
		if err != nil {
			return err
		}
		defer body.Close()
		tmeta.Name = fmeta.Name
		return fsOp.PlaceFile(afs, *tmeta, body)
	case err == nil, Category(err) == fs.ErrNotExists, Category(err) == fs.ErrNotDir:
		log.Debug("link target not present (yet); leaving an empty placeholder")
		return placeholder(afs, fmeta)
	default:
		return err
	}
}

func placeholder(afs fs.FS, link fs.Metadata) error {
	return fsOp.PlaceFile(afs, fs.Metadata{Name: link.Name, Type: fs.Type_File, Perms: 0644, Mtime: link.Mtime}, nil)
}

package tartrans

import (
	"archive/tar"
	"context"
	"io"
	"time"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/fs"
	"github.com/polydawn/labimg/fsOp"
)

/*
Write the tree in afs as an uncompressed tar stream to w.

Entries are named relative to the tree root with a "./" prefix and no
wrapping parent dir, the same as `tar -C <root> -cf - .` would produce.

Files, dirs, symlinks, and fifos are packed; sockets and device nodes
are skipped.
*/
func Pack(ctx context.Context, afs fs.FS, w io.Writer) (err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))

	tw := tar.NewWriter(w)
	if err := packTar(ctx, afs, tw); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return Errorf(labimg.ErrBuild, "error while packing %s: %s", afs.BasePath(), err)
	}
	return nil
}

func packTar(ctx context.Context, afs fs.FS, tw *tar.Writer) error {
	preVisit := func(filenode *fs.FilewalkNode) error {
		if filenode.Err != nil {
			return Errorf(labimg.ErrBuild, "error while packing %s: %s", afs.BasePath(), filenode.Err)
		}

		// Consider cancellation.
		if err := labimg.CheckCancelled(ctx); err != nil {
			return err
		}

		switch filenode.Info.Type {
		case fs.Type_Socket, fs.Type_Device, fs.Type_CharDevice:
			return nil
		}

		// Open file.
		fmeta, file, err := fsOp.ScanFile(afs, filenode.Info.Name)
		if err != nil {
			return Errorf(labimg.ErrBuild, "error while packing %s: %s", afs.BasePath(), err)
		}
		if file != nil {
			defer file.Close()
		}

		// Flatten time to seconds.  The tar writer impl doesn't do subsecond precision.
		fmeta.Mtime = fmeta.Mtime.Truncate(time.Second)

		// Flip our metadata to tar header format, and flush it.
		tarHeader := &tar.Header{}
		MetadataToTarHdr(fmeta, tarHeader)
		if err := tw.WriteHeader(tarHeader); err != nil {
			return Errorf(labimg.ErrBuild, "error while packing %q: %s", fmeta.Name, err)
		}

		// If it's a file, stream the body into the tar.
		if file != nil {
			if _, err := io.Copy(tw, file); err != nil {
				return Errorf(labimg.ErrBuild, "error while packing %q: %s", fmeta.Name, err)
			}
		}
		return nil
	}
	return fs.Walk(afs, preVisit, nil)
}

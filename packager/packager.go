/*
The packager turns a finished rootfs dir into a compressed image in the dist dir.

Two kinds are supported: a flat tar of the tree, or an ext4 filesystem image
populated from the tree.  Either way the raw `<role>.img` is an intermediate:
it is gzipped to `<role>.img.gz` and removed, success or failure.
*/
package packager

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"
	"golang.org/x/sys/unix"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/fs"
	"github.com/polydawn/labimg/fs/osfs"
	"github.com/polydawn/labimg/lib/cmdrun"
	"github.com/polydawn/labimg/lib/ctxio"
	tartrans "github.com/polydawn/labimg/transmat/tar"
)

// Per http://tukaani.org/lzma/benchmarks.html and friends: higher levels have
// minimal size payoffs for significantly rising compress time.
const GzipLevel = 6

// A packaged image on disk.
type Artifact struct {
	Role labimg.Role
	Path string
}

type Packager struct {
	Runner cmdrun.Runner // Used for mke2fs.
	Log    logrus.FieldLogger
}

func (p Packager) Package(
	ctx context.Context,
	role labimg.Role,
	rootfs string, // The finished tree.
	distDir string, // Where the image lands.
	kind labimg.ImageKind,
	sizeMB int, // Raw filesystem size; only used for Kind_BlockImage.
) (_ Artifact, err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))
	log := p.Log.WithField("role", role)

	if err := os.MkdirAll(distDir, 0755); err != nil {
		return Artifact{}, Errorf(labimg.ErrBuild, "cannot create dist dir: %s", err)
	}
	rawPath := filepath.Join(distDir, role.String()+".img")
	defer os.Remove(rawPath)

	switch kind {
	case labimg.Kind_Archive:
		log.Infof("packaging %s rootfs into %s", role, rawPath)
		err = packArchive(ctx, rootfs, rawPath)
	case labimg.Kind_BlockImage:
		log.Infof("creating %s ext4 image %s (%d MB)", role, rawPath, sizeMB)
		err = p.packBlockImage(ctx, role, rootfs, rawPath, sizeMB)
	default:
		return Artifact{}, Errorf(labimg.ErrUsage, "unknown image kind %q", kind)
	}
	if err != nil {
		return Artifact{}, err
	}

	gzPath, err := finalize(ctx, log, rawPath)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Role: role, Path: gzPath}, nil
}

func packArchive(ctx context.Context, rootfs string, rawPath string) error {
	rootfs, err := filepath.Abs(rootfs)
	if err != nil {
		return Errorf(labimg.ErrBuild, "cannot package: %s", err)
	}
	f, err := os.OpenFile(rawPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return Errorf(labimg.ErrBuild, "cannot create image: %s", err)
	}
	defer f.Close()
	buf := bufio.NewWriterSize(f, 1<<20)
	if err := tartrans.Pack(ctx, osfs.New(fs.MustAbsolutePath(rootfs)), buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return Errorf(labimg.ErrBuild, "error writing image: %s", err)
	}
	if err := f.Close(); err != nil {
		return Errorf(labimg.ErrBuild, "error writing image: %s", err)
	}
	return nil
}

func (p Packager) packBlockImage(ctx context.Context, role labimg.Role, rootfs string, rawPath string, sizeMB int) error {
	if _, err := p.Runner.LookPath("mke2fs"); err != nil {
		return Errorf(labimg.ErrBuild, "mke2fs not found; install e2fsprogs or use --kind=%s", labimg.Kind_Archive)
	}

	// Allocate the zero-filled (sparse) image file at its full size.
	sizeBytes := int64(sizeMB) * 1024 * 1024
	f, err := os.OpenFile(rawPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return Errorf(labimg.ErrBuild, "cannot create image: %s", err)
	}
	if err := unix.Ftruncate(int(f.Fd()), sizeBytes); err != nil {
		f.Close()
		return Errorf(labimg.ErrBuild, "cannot size image to %d MB: %s", sizeMB, err)
	}
	if err := f.Close(); err != nil {
		return Errorf(labimg.ErrBuild, "cannot create image: %s", err)
	}

	blocks := sizeBytes / 4096
	return p.Runner.Run(ctx, "mke2fs",
		"-t", "ext4",
		"-d", rootfs,
		"-L", role.String()+"-lab",
		"-m", "0",
		rawPath,
		strconv.FormatInt(blocks, 10),
	)
}

// Gzip rawPath to rawPath+".gz", and remove rawPath.
// On failure, neither file is left behind.
func finalize(ctx context.Context, log logrus.FieldLogger, rawPath string) (_ string, err error) {
	gzPath := rawPath + ".gz"
	log.Debugf("compressing %s -> %s", filepath.Base(rawPath), filepath.Base(gzPath))
	defer func() {
		if err != nil {
			os.Remove(gzPath)
		}
	}()

	src, err := os.Open(rawPath)
	if err != nil {
		return "", Errorf(labimg.ErrBuild, "cannot compress image: %s", err)
	}
	defer src.Close()
	dst, err := os.OpenFile(gzPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", Errorf(labimg.ErrBuild, "cannot compress image: %s", err)
	}
	defer dst.Close()
	gzw, err := gzip.NewWriterLevel(dst, GzipLevel)
	if err != nil {
		return "", Errorf(labimg.ErrBuild, "cannot compress image: %s", err)
	}
	if _, err := io.Copy(gzw, ctxio.NewReader(ctx, src)); err != nil {
		if err := labimg.CheckCancelled(ctx); err != nil {
			return "", err
		}
		return "", Errorf(labimg.ErrBuild, "cannot compress image: %s", err)
	}
	if err := gzw.Close(); err != nil {
		return "", Errorf(labimg.ErrBuild, "cannot compress image: %s", err)
	}
	if err := dst.Close(); err != nil {
		return "", Errorf(labimg.ErrBuild, "cannot compress image: %s", err)
	}
	if err := os.Remove(rawPath); err != nil {
		return "", Errorf(labimg.ErrBuild, "cannot remove intermediate image: %s", err)
	}

	fi, err := os.Stat(gzPath)
	if err != nil {
		return "", Errorf(labimg.ErrBuild, "cannot stat compressed image: %s", err)
	}
	log.Infof("%s packaged (%s)", filepath.Base(gzPath), megabytes(fi.Size()))
	return gzPath, nil
}

func megabytes(n int64) string {
	return fmt.Sprintf("%.1f MB", float64(n)/1e6)
}

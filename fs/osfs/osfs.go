package osfs

import (
	"os"
	"strings"
	"time"

	. "github.com/warpfork/go-errcat"
	"golang.org/x/sys/unix"

	"github.com/polydawn/labimg/fs"
)

func init() {
	// Perms we place are perms we mean.
	unix.Umask(0)
}

func New(basePath fs.AbsolutePath) fs.FS {
	return &osFS{basePath}
}

type osFS struct {
	basePath fs.AbsolutePath
}

func (afs *osFS) BasePath() fs.AbsolutePath {
	return afs.basePath
}

func (afs *osFS) OpenFile(path fs.RelPath, flag int, perms fs.Perms) (fs.File, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(rpath, flag, permsToOs(perms))
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	return f, nil
}

func (afs *osFS) Mkdir(path fs.RelPath, perms fs.Perms) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	return fs.NormalizeIOError(os.Mkdir(rpath, permsToOs(perms)))
}

func (afs *osFS) Chmod(path fs.RelPath, perms fs.Perms) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	return fs.NormalizeIOError(os.Chmod(rpath, permsToOs(perms)))
}

func (afs *osFS) SetTimesNano(path fs.RelPath, mtime time.Time, atime time.Time) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	utimes := []unix.Timespec{
		unix.NsecToTimespec(atime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	// AT_SYMLINK_NOFOLLOW: never touch whatever a symlink points at.
	return fs.NormalizeIOError(unix.UtimesNanoAt(unix.AT_FDCWD, rpath, utimes, unix.AT_SYMLINK_NOFOLLOW))
}

func (afs *osFS) Stat(path fs.RelPath) (*fs.Metadata, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(rpath)
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	return afs.convertFileinfo(path, fi)
}

func (afs *osFS) LStat(path fs.RelPath) (*fs.Metadata, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Lstat(rpath)
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	return afs.convertFileinfo(path, fi)
}

func (afs *osFS) convertFileinfo(path fs.RelPath, fi os.FileInfo) (*fs.Metadata, error) {
	fmeta := &fs.Metadata{
		Name:  path,
		Mtime: fi.ModTime(),
	}

	// Munge perms and mode to our types.
	fm := fi.Mode()
	switch fm & (os.ModeType | os.ModeCharDevice) {
	case 0:
		fmeta.Type = fs.Type_File
	case os.ModeDir:
		fmeta.Type = fs.Type_Dir
	case os.ModeSymlink:
		fmeta.Type = fs.Type_Symlink
		// If it's a symlink, get that info.
		//  It's an extra syscall, but we almost always want it.
		target, _, err := afs.Readlink(path)
		if err != nil {
			return nil, err
		}
		fmeta.Linkname = target
	case os.ModeNamedPipe:
		fmeta.Type = fs.Type_NamedPipe
	case os.ModeSocket:
		fmeta.Type = fs.Type_Socket
	case os.ModeDevice:
		fmeta.Type = fs.Type_Device
	case os.ModeDevice | os.ModeCharDevice:
		fmeta.Type = fs.Type_CharDevice
	default:
		return nil, Errorf(fs.ErrIOUnknown, "unknown file mode %s at %s", fm, afs.basePath.Join(path))
	}
	fmeta.Perms = fs.Perms(fm.Perm())
	if fm&os.ModeSetuid != 0 {
		fmeta.Perms |= fs.Perms_Setuid
	}
	if fm&os.ModeSetgid != 0 {
		fmeta.Perms |= fs.Perms_Setgid
	}
	if fm&os.ModeSticky != 0 {
		fmeta.Perms |= fs.Perms_Sticky
	}

	// Only files get a size.  Knowing how many blocks a dir takes
	//  up is very rarely what we want.
	if fmeta.Type == fs.Type_File {
		fmeta.Size = fi.Size()
	}
	return fmeta, nil
}

func (afs *osFS) ReadDirNames(path fs.RelPath) ([]string, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(rpath)
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	return names, fs.NormalizeIOError(err)
}

func (afs *osFS) Readlink(path fs.RelPath) (string, bool, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return "", false, err
	}
	target, isLink, err := readlink(rpath)
	return target, isLink, fs.NormalizeIOError(err)
}

func readlink(path string) (string, bool, error) {
	target, err := os.Readlink(path)
	switch {
	case err == nil:
		return target, true, nil
	case err.(*os.PathError).Err == unix.EINVAL:
		// EINVAL means "not a symlink".
		// We return this as false and a nil error because it's frequently useful to use
		// the readlink syscall blindly with an lstat first in order to save a syscall.
		return "", false, nil
	default:
		return "", false, err
	}
}

// Joins the path to the base path.  Refuses paths that go up and out.
// Symlinks in the path are not resolved here; the kernel does that.
func (afs *osFS) realpath(path fs.RelPath) (string, error) {
	if path.GoesUp() {
		return "", Errorf(fs.ErrBreakout, "fs: invalid path %q: must not depart basepath", path)
	}
	return afs.basePath.Join(path).String(), nil
}

func (afs *osFS) ResolveLink(symlink string, startingAt fs.RelPath) (fs.RelPath, error) {
	if startingAt.GoesUp() {
		return startingAt, Errorf(fs.ErrBreakout, "fs: invalid path %q: must not depart basepath", startingAt)
	}
	return afs.resolveLink(symlink, startingAt, map[fs.RelPath]struct{}{})
}
func (afs *osFS) resolveLink(symlink string, startingAt fs.RelPath, seen map[fs.RelPath]struct{}) (fs.RelPath, error) {
	if _, isSeen := seen[startingAt]; isSeen {
		return startingAt, Errorf(fs.ErrRecursion, "cyclic symlinks detected from %q", startingAt)
	}
	seen[startingAt] = struct{}{}
	segments := strings.Split(symlink, "/")
	path := startingAt
	if segments[0] == "" { // rooted
		path = fs.RelPath{}
		segments = segments[1:]
	} else {
		path = startingAt.Dir() // drop the link node itself
	}
	for _, s := range segments {
		// Identity segments can simply be skipped.
		if s == "" || s == "." {
			continue
		}
		// Excessive up segements aren't an error; they simply no-op when already at root.
		if s == ".." {
			path = path.Dir()
			continue
		}
		path = path.Join(fs.MustRelPath(s))
		// Bail on cycles before considering recursion!
		if path == startingAt {
			return startingAt, Errorf(fs.ErrRecursion, "cyclic symlinks detected from %q", startingAt)
		}
		// Check if this is a symlink; if so we must recurse on it.
		morelink, isLink, err := readlink(afs.basePath.Join(path).String())
		if err != nil {
			if os.IsNotExist(err) || isNotDir(err) {
				// The rest of the path can't be examined; keep joining blindly.
				continue
			}
			return startingAt, fs.NormalizeIOError(err)
		}
		if isLink {
			path, err = afs.resolveLink(morelink, path, seen)
			if err != nil {
				return startingAt, err
			}
		}
	}
	return path, nil
}

// ENOTDIR: some segment so far is a file, so nothing below it can exist.
func isNotDir(err error) bool {
	pe, ok := err.(*os.PathError)
	return ok && pe.Err == unix.ENOTDIR
}

func permsToOs(perms fs.Perms) (mode os.FileMode) {
	mode = os.FileMode(perms & 0777)
	if perms&fs.Perms_Setuid != 0 {
		mode |= os.ModeSetuid
	}
	if perms&fs.Perms_Setgid != 0 {
		mode |= os.ModeSetgid
	}
	if perms&fs.Perms_Sticky != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

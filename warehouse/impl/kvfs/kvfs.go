package kvfs

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/fs"
	"github.com/polydawn/labimg/warehouse"
)

var (
	_ warehouse.BlobstoreController = Controller{}
)

type Controller struct {
	addr     string // user's string retained for messages
	filePath fs.AbsolutePath
}

/*
Initialize a new warehouse controller that reads a file on a local filesystem.

Relative paths (e.g. `file://./mirror/rootfs.tar.gz`) are resolved against the
working directory.

May return errors of category:

  - `labimg.ErrUsage` -- for unsupported addresses
*/
func NewController(addr string) (warehouse.BlobstoreController, error) {
	whCtrl := Controller{
		addr: addr,
	}

	// Verify that the addr is sensible up front, and extract features.
	//  - We parse things mostly like URLs.
	//  - We extract the filesystem path, and normalize it to its absolute form.
	u, err := url.Parse(addr)
	if err != nil {
		return whCtrl, Errorf(labimg.ErrUsage, "failed to parse URI: %s", err)
	}
	switch u.Scheme {
	case "file":
	default:
		return whCtrl, Errorf(labimg.ErrUsage, "unsupported scheme in warehouse addr: %q (valid options are 'file')", u.Scheme)
	}
	absPth, err := filepath.Abs(filepath.Join(u.Host, u.Path))
	if err != nil {
		return whCtrl, Errorf(labimg.ErrUsage, "cannot resolve path in warehouse addr %q: %s", addr, err)
	}
	whCtrl.filePath = fs.MustAbsolutePath(absPth)

	// Existence isn't checked until a read is opened.
	return whCtrl, nil
}

func (whCtrl Controller) Addr() string { return whCtrl.addr }

func (whCtrl Controller) OpenReader(ctx context.Context) (io.ReadCloser, error) {
	if err := labimg.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(whCtrl.filePath.String(), os.O_RDONLY, 0)
	switch {
	case err == nil:
		return file, nil
	case os.IsNotExist(err):
		return nil, Errorf(labimg.ErrBuild, "%s not found", whCtrl.addr)
	default:
		return nil, Errorf(labimg.ErrBuild, "%s could not be read: %s", whCtrl.addr, err)
	}
}

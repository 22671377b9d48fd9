/*
The cache keeps downloaded base archives on local disk so repeated
builds neither hit the network nor depend on it.

A cached archive is never modified after it has been written.
*/
package cache

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/lib/ctxio"
	"github.com/polydawn/labimg/warehouse"
	"github.com/polydawn/labimg/warehouse/impl/kvfs"
	"github.com/polydawn/labimg/warehouse/impl/kvhttp"
)

// The path in cacheDir where the archive at addr is kept: the last segment of its URL path.
func ShelfFor(cacheDir string, addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", Errorf(labimg.ErrUsage, "failed to parse URI %q: %s", addr, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "", Errorf(labimg.ErrUsage, "source URI %q does not name a file", addr)
	}
	return filepath.Join(cacheDir, name), nil
}

// Pick a warehouse controller for the address by its scheme.
func Dial(addr string) (warehouse.BlobstoreController, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, Errorf(labimg.ErrUsage, "failed to parse URI %q: %s", addr, err)
	}
	switch u.Scheme {
	case "http", "https":
		return kvhttp.NewController(addr)
	case "file":
		return kvfs.NewController(addr)
	default:
		return nil, Errorf(labimg.ErrUsage, "unsupported scheme %q in source URI (valid options are 'http', 'https', or 'file')", u.Scheme)
	}
}

/*
Fetch the resource at addr to destination, unless destination already exists,
in which case it is returned untouched and no connection is made at all.

The body is streamed directly into destination.  If the transfer fails,
the partial file is removed so it's not mistaken for a cache hit next time.
*/
func Fetch(ctx context.Context, log logrus.FieldLogger, addr string, destination string) (_ string, err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))
	log = log.WithField("url", addr)

	if _, err := os.Stat(destination); err == nil {
		log.WithField("path", destination).Infof("using cached %s", filepath.Base(destination))
		return destination, nil
	}

	whCtrl, err := Dial(addr)
	if err != nil {
		return "", err
	}
	log.Info("downloading base archive")
	reader, err := whCtrl.OpenReader(ctx)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	n, err := writeFile(ctx, destination, reader)
	if err != nil {
		os.Remove(destination)
		if err := labimg.CheckCancelled(ctx); err != nil {
			return "", err
		}
		return "", Errorf(labimg.ErrBuild, "failed to download %s: %s", addr, err)
	}
	log.WithField("path", destination).Infof("downloaded %.1f MB", float64(n)/(1<<20))
	return destination, nil
}

func writeFile(ctx context.Context, destination string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, ctxio.NewReader(ctx, r))
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

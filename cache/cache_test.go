package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/fs"
	. "github.com/polydawn/labimg/testutil"
)

func TestFetch(t *testing.T) {
	Convey("Fetch:", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			ctx := context.Background()
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				switch r.URL.Path {
				case "/rootfs.tar.gz":
					w.Write([]byte("archive bytes"))
				default:
					http.NotFound(w, r)
				}
			}))
			defer srv.Close()
			dest := filepath.Join(tmpDir.String(), "cache", "rootfs.tar.gz")

			Convey("downloads into an empty cache", func() {
				got, err := Fetch(ctx, Logger(), srv.URL+"/rootfs.tar.gz", dest)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, dest)
				So(ReadFile(dest), ShouldEqual, "archive bytes")
				So(atomic.LoadInt32(&hits), ShouldEqual, 1)

				Convey("and the second fetch makes no request at all", func() {
					_, err := Fetch(ctx, Logger(), srv.URL+"/rootfs.tar.gz", dest)
					So(err, ShouldBeNil)
					So(atomic.LoadInt32(&hits), ShouldEqual, 1)
				})
			})
			Convey("a pre-populated cache is used without network access", func() {
				WriteFile(dest, "already here", 0644)
				// An unroutable address: any attempt to connect would fail the test.
				got, err := Fetch(ctx, Logger(), "http://192.0.2.1/rootfs.tar.gz", dest)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, dest)
				So(ReadFile(dest), ShouldEqual, "already here")
				So(atomic.LoadInt32(&hits), ShouldEqual, 0)
			})
			Convey("a non-200 response is a build error and leaves no file behind", func() {
				_, err := Fetch(ctx, Logger(), srv.URL+"/missing.tar.gz", dest)
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrBuild)
				_, statErr := os.Stat(dest)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
			Convey("file URLs are read from local disk", func() {
				src := filepath.Join(tmpDir.String(), "mirror", "rootfs.tar.gz")
				WriteFile(src, "local bytes", 0644)
				_, err := Fetch(ctx, Logger(), "file://"+src, dest)
				So(err, ShouldBeNil)
				So(ReadFile(dest), ShouldEqual, "local bytes")
			})
			Convey("a missing file URL is a build error", func() {
				_, err := Fetch(ctx, Logger(), "file://"+filepath.Join(tmpDir.String(), "nope.tar.gz"), dest)
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrBuild)
			})
			Convey("unknown schemes are a usage error", func() {
				_, err := Fetch(ctx, Logger(), "ftp://example.com/rootfs.tar.gz", dest)
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrUsage)
			})
			Convey("a cancelled context is reported as such", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				_, err := Fetch(cctx, Logger(), srv.URL+"/rootfs.tar.gz", dest)
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrCancelled)
			})
		})
	})
}

func TestShelfFor(t *testing.T) {
	Convey("ShelfFor names the cache file after the URL's last segment", t, func() {
		p, err := ShelfFor("/cache", labimg.DefaultSourceURL)
		So(err, ShouldBeNil)
		So(p, ShouldEqual, "/cache/alpine-minirootfs-3.19.1-x86_64.tar.gz")

		_, err = ShelfFor("/cache", "https://example.com/")
		So(err, errcat.ErrorShouldHaveCategory, labimg.ErrUsage)
	})
}

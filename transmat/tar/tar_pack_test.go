package tartrans

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/labimg/fs"
	"github.com/polydawn/labimg/fs/osfs"
	. "github.com/polydawn/labimg/testutil"
)

func TestPack(t *testing.T) {
	Convey("Pack emits a tar rooted at './'", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			root := tmpDir.Join(fs.MustRelPath("rootfs"))
			WriteFile(filepath.Join(root.String(), "etc/hostname"), "attacker-vm\n", 0644)
			WriteFile(filepath.Join(root.String(), "bin/busybox"), "#!busybox", 0755)
			So(os.Symlink("/bin/busybox", filepath.Join(root.String(), "bin/sh")), ShouldBeNil)

			var buf bytes.Buffer
			So(Pack(context.Background(), osfs.New(root), &buf), ShouldBeNil)

			type entry struct {
				typ      byte
				mode     int64
				body     string
				linkname string
			}
			entries := map[string]entry{}
			var order []string
			tr := tar.NewReader(&buf)
			for {
				hdr, err := tr.Next()
				if err == io.EOF {
					break
				}
				So(err, ShouldBeNil)
				body, _ := ioutil.ReadAll(tr)
				entries[hdr.Name] = entry{hdr.Typeflag, hdr.Mode, string(body), hdr.Linkname}
				order = append(order, hdr.Name)
			}

			So(order, ShouldResemble, []string{"./", "./bin/", "./bin/busybox", "./bin/sh", "./etc/", "./etc/hostname"})
			So(entries["./etc/hostname"].body, ShouldEqual, "attacker-vm\n")
			So(entries["./bin/busybox"].mode, ShouldEqual, 0755)
			So(entries["./bin/sh"].typ, ShouldEqual, tar.TypeSymlink)
			So(entries["./bin/sh"].linkname, ShouldEqual, "/bin/busybox")
			So(entries["./etc/"].typ, ShouldEqual, tar.TypeDir)

			Convey("and what it packs extracts back to the same content", func() {
				archive := tmpDir.Join(fs.MustRelPath("repacked.tar")).String()
				// buf was drained by the reader above; pack again.
				var buf2 bytes.Buffer
				So(Pack(context.Background(), osfs.New(root), &buf2), ShouldBeNil)
				So(ioutil.WriteFile(archive, buf2.Bytes(), 0644), ShouldBeNil)

				dest := tmpDir.Join(fs.MustRelPath("again")).String()
				So(Extract(context.Background(), Logger(), archive, dest, false), ShouldBeNil)
				So(ReadFile(filepath.Join(dest, "bin/sh")), ShouldEqual, "#!busybox")
				So(ReadFile(filepath.Join(dest, "etc/hostname")), ShouldEqual, "attacker-vm\n")
			})
		})
	})
}

package fs

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

//--------------
// RelPath
//--------------

func TestRelPath(t *testing.T) {
	Convey("RelPath stringer suite:", t, func() {
		for _, tr := range []struct {
			title string
			p1    RelPath
			str   string
		}{
			{"zero values",
				RelPath{},
				"."},
			{"dot value",
				MustRelPath("."),
				"."},
			{"short value",
				MustRelPath("aa"),
				"./aa"},
			{"long value",
				MustRelPath("a/bb/ccc"),
				"./a/bb/ccc"},
			{"denormalized value",
				MustRelPath("../a/bb/../ccc"),
				"../a/ccc"},
			{"lone doubledot value",
				MustRelPath("../"),
				".."},
			{"dotted value",
				MustRelPath(".aa"),
				"./.aa"},
			{"dotted2 value",
				MustRelPath("..aa"),
				"./..aa"},
		} {
			Convey(tr.title, func() {
				v := fmt.Sprintf("%s", tr.p1)
				So(v, ShouldResemble, tr.str)
			})
		}
	})
}

func TestRelPathDir(t *testing.T) {
	Convey("RelPath.Dir suite:", t, func() {
		So(RelPath{}.Dir(), ShouldResemble, RelPath{})
		So(MustRelPath("aa").Dir(), ShouldResemble, RelPath{})
		So(MustRelPath("a/bb/ccc").Dir(), ShouldResemble, MustRelPath("a/bb"))
		So(MustRelPath("../a/bb/../ccc").Dir(), ShouldResemble, MustRelPath("../a"))
	})
}

func TestRelPathJoins(t *testing.T) {
	Convey("RelPath.Join suite:", t, func() {
		for _, tr := range []struct {
			title  string
			p1, p2 RelPath
			pj     RelPath
		}{
			{"zero values",
				RelPath{}, RelPath{},
				RelPath{}},
			{"regular values",
				MustRelPath("rel"), MustRelPath("pth"),
				MustRelPath("rel/pth")},
			{"long,long",
				MustRelPath("a/bb/ccc"), MustRelPath("dd/e"),
				MustRelPath("a/bb/ccc/dd/e")},
			{"short,up",
				MustRelPath("rel"), MustRelPath(".."),
				MustRelPath(".")},
			{"long,up",
				MustRelPath("r/el"), MustRelPath(".."),
				MustRelPath("r")},
			{"dotted,dotted",
				MustRelPath(".dot"), MustRelPath(".wonk"),
				MustRelPath(".dot/.wonk")},
		} {
			Convey(tr.title, func() {
				v := tr.p1.Join(tr.p2)
				So(v, ShouldResemble, tr.pj)
				So(v.Last(), ShouldEqual, tr.pj.Last())
			})
		}
	})
}

func TestRerooted(t *testing.T) {
	Convey("Rerooted treats leading slashes as the base of the tree", t, func() {
		So(Rerooted("/bin/busybox"), ShouldResemble, MustRelPath("bin/busybox"))
		So(Rerooted("bin/busybox"), ShouldResemble, MustRelPath("bin/busybox"))
		So(Rerooted("./etc/"), ShouldResemble, MustRelPath("etc"))
		So(Rerooted("/"), ShouldResemble, RelPath{})
		Convey("and cannot be escaped with updirs", func() {
			So(Rerooted("../../etc/passwd"), ShouldResemble, MustRelPath("etc/passwd"))
			So(Rerooted("/a/../../b").GoesUp(), ShouldBeFalse)
		})
	})
}

func TestRelPathSplitParent(t *testing.T) {
	Convey("RelPath.SplitParent suite:", t, func() {
		So(RelPath{}.SplitParent(), ShouldBeEmpty)
		So(MustRelPath("./a").SplitParent(), ShouldBeEmpty)
		So(MustRelPath("./a/bb/c").SplitParent(), ShouldResemble,
			[]RelPath{MustRelPath("a"), MustRelPath("a/bb")})
		So(MustRelPath("./.a/bb/.c").SplitParent(), ShouldResemble,
			[]RelPath{MustRelPath(".a"), MustRelPath(".a/bb")})
	})
}

func TestRelPathGoesUp(t *testing.T) {
	Convey("RelPath.GoesUp suite:", t, func() {
		So(MustRelPath("..").GoesUp(), ShouldBeTrue)
		So(MustRelPath("../a").GoesUp(), ShouldBeTrue)
		So(MustRelPath("a/../../b").GoesUp(), ShouldBeTrue)
		So(MustRelPath("..a").GoesUp(), ShouldBeFalse)
		So(MustRelPath("a/..").GoesUp(), ShouldBeFalse)
	})
}

//--------------
// AbsolutePath
//--------------

func TestAbsolutePathJoins(t *testing.T) {
	Convey("AbsolutePath.Join suite:", t, func() {
		for _, tr := range []struct {
			title string
			p1    AbsolutePath
			p2    RelPath
			pj    AbsolutePath
		}{
			{"zero values",
				AbsolutePath{}, RelPath{},
				AbsolutePath{}},
			{"regular values",
				MustAbsolutePath("/root/"), MustRelPath("pth"),
				MustAbsolutePath("/root/pth")},
			{"root,short",
				MustAbsolutePath("/"), MustRelPath("pth"),
				MustAbsolutePath("/pth")},
			{"long,long",
				MustAbsolutePath("/a/bb/ccc"), MustRelPath("dd/e"),
				MustAbsolutePath("/a/bb/ccc/dd/e")},
		} {
			Convey(tr.title, func() {
				v := tr.p1.Join(tr.p2)
				So(v, ShouldResemble, tr.pj)
				So(v.Dir(), ShouldResemble, tr.pj.Dir())
			})
		}
	})
}

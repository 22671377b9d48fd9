package roles

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/labimg"
)

func TestRoleSpecs(t *testing.T) {
	Convey("Every role has complete static data", t, func() {
		for _, role := range labimg.AllRoles() {
			spec := For(role)
			So(spec.Role, ShouldEqual, role)
			So(spec.Files, ShouldNotBeEmpty)
			So(spec.StartupBody, ShouldEndWith, "\n")
			So(spec.Packages[:len(CommonPackages)], ShouldResemble, CommonPackages)
			for _, pair := range spec.Files {
				So(strings.HasPrefix(pair.Dst, "/"), ShouldBeFalse)
				So(strings.HasPrefix(pair.Dst, "opt/lab/"), ShouldBeTrue)
			}
		}
	})
	Convey("Role package lists are distinct", t, func() {
		So(For(labimg.Attacker).Packages, ShouldContain, "hping3")
		So(For(labimg.Defender).Packages, ShouldContain, "snort")
		So(For(labimg.Defender).Packages, ShouldNotContain, "hping3")
	})
}

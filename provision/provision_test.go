package provision

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/roles"
	. "github.com/polydawn/labimg/testutil"
)

type fakeRunner struct {
	hasChroot bool
	failOn    string // a command line substring which "exits non-zero"
	calls     []string
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if name == "chroot" && r.hasChroot {
		return "/usr/sbin/chroot", nil
	}
	return "", errors.New("not found")
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	line := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, line)
	if r.failOn != "" && strings.Contains(line, r.failOn) {
		return errcat.Errorf(labimg.ErrBuild, "command %q exited with code 1", line)
	}
	return nil
}

func TestProvision(t *testing.T) {
	Convey("Provision:", t, func() {
		ctx := context.Background()
		runner := &fakeRunner{hasChroot: true}
		p := Provisioner{Runner: runner, CanChroot: func() bool { return true }, Log: Logger()}

		Convey("opting out runs nothing", func() {
			outcome, err := p.Provision(ctx, labimg.Attacker, "/build/attacker/rootfs", true)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, Skipped)
			So(runner.calls, ShouldBeEmpty)
		})
		Convey("no chroot binary is unavailable, not an error", func() {
			runner.hasChroot = false
			outcome, err := p.Provision(ctx, labimg.Attacker, "/build/attacker/rootfs", false)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, Unavailable)
			So(runner.calls, ShouldBeEmpty)
		})
		Convey("lacking privilege is unavailable, not an error", func() {
			p.CanChroot = func() bool { return false }
			outcome, err := p.Provision(ctx, labimg.Defender, "/build/defender/rootfs", false)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, Unavailable)
			So(runner.calls, ShouldBeEmpty)
		})
		Convey("with privilege, the index is updated and then packages added", func() {
			outcome, err := p.Provision(ctx, labimg.Attacker, "/build/attacker/rootfs", false)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, Installed)
			So(runner.calls, ShouldResemble, []string{
				"chroot /build/attacker/rootfs apk update",
				"chroot /build/attacker/rootfs apk add --no-cache " + strings.Join(roles.For(labimg.Attacker).Packages, " "),
			})
		})
		Convey("a failing chroot command is fatal and stops the sequence", func() {
			runner.failOn = "apk update"
			_, err := p.Provision(ctx, labimg.Defender, "/build/defender/rootfs", false)
			So(err, errcat.ErrorShouldHaveCategory, labimg.ErrBuild)
			So(err.Error(), ShouldContainSubstring, "apk update")
			So(runner.calls, ShouldHaveLength, 1)
		})
	})
}

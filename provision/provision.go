/*
Provision installs a role's packages into its rootfs by running the
rootfs's own package manager under chroot.

This needs privileges the build host may not grant; lacking them is not
an error, just an Outcome.
*/
package provision

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/caps"
	"github.com/polydawn/labimg/lib/cmdrun"
	"github.com/polydawn/labimg/roles"
)

type Outcome uint8

const (
	Skipped     Outcome = iota // The operator opted out.
	Unavailable                // No chroot binary, or not privileged enough to use it.
	Installed                  // Packages were installed.
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Unavailable:
		return "unavailable"
	case Installed:
		return "installed"
	default:
		return "invalid"
	}
}

type Provisioner struct {
	Runner    cmdrun.Runner
	CanChroot func() bool // Defaults to checking our capabilities for CAP_SYS_CHROOT.
	Log       logrus.FieldLogger
}

func New(log logrus.FieldLogger, runner cmdrun.Runner) Provisioner {
	return Provisioner{
		Runner:    runner,
		CanChroot: func() bool { return caps.Scan().CanChroot() },
		Log:       log,
	}
}

/*
Install the role's packages into the rootfs at the given host path.

Returns an error only if a chroot command could not be started or
exited non-zero; that's fatal for the role.
*/
func (p Provisioner) Provision(ctx context.Context, role labimg.Role, rootfs string, skip bool) (_ Outcome, err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))
	log := p.Log.WithField("role", role)

	if skip {
		log.Infof("skipping package provisioning for %s (opted out)", role)
		return Skipped, nil
	}
	if _, err := p.Runner.LookPath("chroot"); err != nil {
		log.Warnf("package provisioning requires chroot, which is not on this host's $PATH; continuing without installing packages for %s", role)
		return Unavailable, nil
	}
	if p.CanChroot != nil && !p.CanChroot() {
		log.Warnf("package provisioning requires the CAP_SYS_CHROOT capability (usually: run as root); continuing without installing packages for %s", role)
		return Unavailable, nil
	}

	packages := roles.For(role).Packages
	log.Infof("installing packages for %s: %s", role, strings.Join(packages, ", "))
	if err := p.chroot(ctx, rootfs, "apk", "update"); err != nil {
		return Installed, err
	}
	if err := p.chroot(ctx, rootfs, append([]string{"apk", "add", "--no-cache"}, packages...)...); err != nil {
		return Installed, err
	}
	return Installed, nil
}

func (p Provisioner) chroot(ctx context.Context, rootfs string, cmd ...string) error {
	p.Log.WithField("cmd", strings.Join(cmd, " ")).Debug("running in chroot")
	return p.Runner.Run(ctx, "chroot", append([]string{rootfs}, cmd...)...)
}

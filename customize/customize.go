/*
Customize writes the role-specific lab content into an extracted rootfs.

Every step works through a billy.Filesystem rooted at the rootfs, so the
steps are oblivious to where the tree lives (and tests can use memfs).
Each step is idempotent: running it again rewrites the same content.
*/
package customize

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/util"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/roles"
)

const (
	IPCDir         = "opt/lab/ipc"
	InitScriptPath = "etc/local.d/lab.start"
	RunlevelPath   = "etc/runlevels/default/lab"
	RepoListPath   = "etc/apk/repositories"
)

var Repositories = []string{
	"https://dl-cdn.alpinelinux.org/alpine/v3.19/main",
	"https://dl-cdn.alpinelinux.org/alpine/v3.19/community",
}

/*
Run every customization step for the role, in order.

`assets` is where lab source files are read from; `rootfs` is the tree to modify.
*/
func Customize(log logrus.FieldLogger, role labimg.Role, rootfs, assets billy.Filesystem) (err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))
	log = log.WithField("role", role)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"copy lab files", func() error { return CopyLabFiles(log, rootfs, assets, roles.For(role)) }},
		{"seed ipc", func() error { return SeedIPC(rootfs) }},
		{"configure hostname", func() error { return ConfigureHostname(rootfs, role) }},
		{"write repositories", func() error { return WriteRepositories(rootfs) }},
		{"write init script", func() error { return WriteInitScript(rootfs, role) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return Errorf(labimg.ErrBuild, "customizing %s: %s: %s", role, step.name, err)
		}
		log.WithField("step", step.name).Debug("customization step done")
	}
	return nil
}

// Copy each of the role's lab files into place.  A missing source is fatal.
func CopyLabFiles(log logrus.FieldLogger, rootfs, assets billy.Filesystem, spec roles.Spec) error {
	for _, pair := range spec.Files {
		if err := copyFile(rootfs, pair.Dst, assets, pair.Src); err != nil {
			return err
		}
		log.Debugf("copied %s -> %s", pair.Src, pair.Dst)
	}
	return nil
}

func copyFile(dstFs billy.Filesystem, dst string, srcFs billy.Filesystem, src string) error {
	fi, err := srcFs.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("missing lab source file %s", srcFs.Join(srcFs.Root(), src))
		}
		return err
	}
	in, err := srcFs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := dstFs.MkdirAll(path.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := dstFs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return chmod(dstFs, dst, fi.Mode().Perm())
}

// Make the world-writable IPC dir and its two control files in their initial state.
func SeedIPC(rootfs billy.Filesystem) error {
	if err := rootfs.MkdirAll(IPCDir, 0777); err != nil {
		return err
	}
	if err := chmod(rootfs, IPCDir, 0777); err != nil {
		return err
	}
	if err := writeFile(rootfs, path.Join(IPCDir, "attack_info.txt"), "", 0644); err != nil {
		return err
	}
	return writeFile(rootfs, path.Join(IPCDir, "stop_attack.txt"), "0\n", 0644)
}

func ConfigureHostname(rootfs billy.Filesystem, role labimg.Role) error {
	hostname := role.Hostname()
	if err := writeFile(rootfs, "etc/hostname", hostname+"\n", 0644); err != nil {
		return err
	}
	return writeFile(rootfs, "etc/hosts", fmt.Sprintf(""+
		"127.0.0.1 localhost\n"+
		"::1       localhost\n"+
		"127.0.1.1 %s\n", hostname), 0644)
}

func WriteRepositories(rootfs billy.Filesystem) error {
	var content string
	for _, repo := range Repositories {
		content += repo + "\n"
	}
	return writeFile(rootfs, RepoListPath, content, 0644)
}

// Write the boot-time script for the role, and the runlevel marker that enables it.
func WriteInitScript(rootfs billy.Filesystem, role labimg.Role) error {
	if err := writeFile(rootfs, InitScriptPath, InitScript(role), 0755); err != nil {
		return err
	}
	return writeFile(rootfs, RunlevelPath, "/"+InitScriptPath+"\n", 0644)
}

func InitScript(role labimg.Role) string {
	return fmt.Sprintf(""+
		"#!/bin/sh\n"+
		"### Autogenerated init for %s\n"+
		"IPC_DIR=\"/%s\"\n"+
		"mkdir -p \"$IPC_DIR\"\n"+
		"chmod 777 \"$IPC_DIR\"\n"+
		"%s", role, IPCDir, roles.For(role).StartupBody)
}

func writeFile(bfs billy.Filesystem, name string, content string, mode os.FileMode) error {
	if err := bfs.MkdirAll(path.Dir(name), 0755); err != nil {
		return err
	}
	if err := util.WriteFile(bfs, name, []byte(content), mode); err != nil {
		return err
	}
	return chmod(bfs, name, mode)
}

/*
Set the mode of a file that may already have existed (OpenFile only
applies perms on creation).

billy's osfs doesn't implement billy.Change, so for it we go straight to
the host path.  In-memory filesystems (rooted at "/") keep the mode they
were created with.
*/
func chmod(bfs billy.Filesystem, name string, mode os.FileMode) error {
	if ch, ok := bfs.(billy.Change); ok {
		return ch.Chmod(name, mode)
	}
	if bfs.Root() == string(filepath.Separator) {
		return nil
	}
	return os.Chmod(filepath.Join(bfs.Root(), name), mode)
}

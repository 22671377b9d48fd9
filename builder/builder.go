/*
The build orchestrator: fetch the base archive once, then walk each
selected role through extract, customize, provision, and package,
and finally record the images in a manifest.

Roles are built one at a time, in the order given.
The first failure aborts the whole invocation.
*/
package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"
	billyosfs "gopkg.in/src-d/go-billy.v4/osfs"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/cache"
	"github.com/polydawn/labimg/customize"
	"github.com/polydawn/labimg/fsOp"
	"github.com/polydawn/labimg/lib/cmdrun"
	"github.com/polydawn/labimg/lib/ctxio"
	"github.com/polydawn/labimg/manifest"
	"github.com/polydawn/labimg/packager"
	"github.com/polydawn/labimg/provision"
	tartrans "github.com/polydawn/labimg/transmat/tar"
)

// The per-build copy of the cached base archive, under the build dir.
const BaseArchiveName = "cache_rootfs.tar.gz"

type provisioner interface {
	Provision(ctx context.Context, role labimg.Role, rootfs string, skip bool) (provision.Outcome, error)
}

type imagePackager interface {
	Package(ctx context.Context, role labimg.Role, rootfs, distDir string, kind labimg.ImageKind, sizeMB int) (packager.Artifact, error)
}

type Builder struct {
	Log         logrus.FieldLogger
	Provisioner provisioner
	Packager    imagePackager
}

// A Builder whose provisioner and packager run external commands through runner.
func New(log logrus.FieldLogger, runner cmdrun.Runner) Builder {
	return Builder{
		Log:         log,
		Provisioner: provision.New(log, runner),
		Packager:    packager.Packager{Runner: runner, Log: log},
	}
}

// The per-role working dir; the rootfs is extracted into its "rootfs" child.
func WorkDir(cfg labimg.BuildConfig, role labimg.Role) string {
	return filepath.Join(cfg.BuildDir, role.String())
}

func (b Builder) Build(ctx context.Context, cfg labimg.BuildConfig) (_ manifest.Manifest, err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))
	if err := cfg.Validate(); err != nil {
		return manifest.Manifest{}, err
	}
	assetsDir := cfg.AssetsDir
	if assetsDir == "" {
		assetsDir = "."
	}

	for _, dir := range []string{cfg.BuildDir, cfg.CacheDir, cfg.DistDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return manifest.Manifest{}, Errorf(labimg.ErrBuild, "cannot create directory %s: %s", dir, err)
		}
	}

	// Fetch once, then take a private copy for this build.
	shelf, err := cache.ShelfFor(cfg.CacheDir, cfg.SourceURL)
	if err != nil {
		return manifest.Manifest{}, err
	}
	cached, err := cache.Fetch(ctx, b.Log, cfg.SourceURL, shelf)
	if err != nil {
		return manifest.Manifest{}, err
	}
	baseArchive := filepath.Join(cfg.BuildDir, BaseArchiveName)
	if err := copyFile(ctx, cached, baseArchive); err != nil {
		return manifest.Manifest{}, err
	}

	var artifacts []packager.Artifact
	for _, role := range cfg.Roles {
		art, err := b.buildRole(ctx, cfg, role, baseArchive, assetsDir)
		if err != nil {
			return manifest.Manifest{}, err
		}
		artifacts = append(artifacts, art)
	}

	return manifest.Build(b.Log, cfg.DistDir, artifacts)
}

func (b Builder) buildRole(ctx context.Context, cfg labimg.BuildConfig, role labimg.Role, baseArchive, assetsDir string) (_ packager.Artifact, err error) {
	progress := newRoleProgress(b.Log, role)
	workDir := WorkDir(cfg, role)
	rootfs := filepath.Join(workDir, "rootfs")
	if !cfg.KeepWorkdir {
		defer func() {
			if rmErr := fsOp.RemoveAll(workDir); rmErr != nil {
				progress.log.WithField("path", workDir).Warnf("could not remove work dir: %s", rmErr)
			}
		}()
	}

	if err := labimg.CheckCancelled(ctx); err != nil {
		return packager.Artifact{}, err
	}
	if err := tartrans.Extract(ctx, progress.log, baseArchive, rootfs, cfg.Force); err != nil {
		return packager.Artifact{}, wrapStep(err, role, "extract")
	}
	progress.advance(State_RootfsReady)

	if err := customize.Customize(progress.log, role, billyosfs.New(rootfs), billyosfs.New(assetsDir)); err != nil {
		return packager.Artifact{}, err // already names the role and step.
	}
	progress.advance(State_Customized)

	outcome, err := b.Provisioner.Provision(ctx, role, rootfs, cfg.SkipPackages)
	if err != nil {
		return packager.Artifact{}, wrapStep(err, role, "provision")
	}
	progress.log.WithField("outcome", outcome).Debug("provisioning finished")
	progress.advance(State_Provisioned)

	art, err := b.Packager.Package(ctx, role, rootfs, cfg.DistDir, cfg.Kind, cfg.ImageSizeMB)
	if err != nil {
		return packager.Artifact{}, wrapStep(err, role, "package")
	}
	progress.advance(State_Packaged)
	progress.advance(State_Done)
	return art, nil
}

// Prefix an error with the role and step it came from, keeping its category.
func wrapStep(err error, role labimg.Role, step string) error {
	return ErrorDetailed(
		Category(err),
		fmt.Sprintf("building %s: %s: %s", role, step, err),
		map[string]string{
			"role": role.String(),
			"step": step,
		},
	)
}

func copyFile(ctx context.Context, src, dst string) (err error) {
	defer func() {
		if err != nil {
			os.Remove(dst)
		}
	}()
	in, err := os.Open(src)
	if err != nil {
		return Errorf(labimg.ErrBuild, "cannot read cached archive: %s", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return Errorf(labimg.ErrBuild, "cannot copy base archive: %s", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, ctxio.NewReader(ctx, in)); err != nil {
		if err := labimg.CheckCancelled(ctx); err != nil {
			return err
		}
		return Errorf(labimg.ErrBuild, "cannot copy base archive: %s", err)
	}
	if err := out.Close(); err != nil {
		return Errorf(labimg.ErrBuild, "cannot copy base archive: %s", err)
	}
	return nil
}

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/fs"
	"github.com/polydawn/labimg/testutil"
)

func TestSettings(t *testing.T) {
	Convey("Settings layering", t, func() {
		testutil.WithTmpdir(func(tmpAbs fs.AbsolutePath) {
			tmpDir := tmpAbs.String()
			Convey("defaults resolve to a valid config", func() {
				cfg, err := Defaults().BuildConfig()
				So(err, ShouldBeNil)
				So(cfg.Roles, ShouldResemble, []labimg.Role{labimg.Attacker, labimg.Defender})
				So(cfg.Kind, ShouldEqual, labimg.Kind_Archive)
				So(filepath.IsAbs(cfg.BuildDir), ShouldBeTrue)
				So(cfg.CacheDir, ShouldEqual, filepath.Join(cfg.BuildDir, "cache"))
				So(cfg.ImageSizeMB, ShouldEqual, labimg.DefaultImageSizeMB)
			})
			Convey("a config file overrides only the keys it names", func() {
				pth := filepath.Join(tmpDir, "labimg.toml")
				So(ioutil.WriteFile(pth, []byte(`
roles = ["defender"]
build_dir = "/srv/lab/build"
kind = "blockimage"
image_size_mb = 64
skip_packages = true
`), 0644), ShouldBeNil)
				s := Defaults()
				So(LoadFile(pth, &s, true), ShouldBeNil)
				cfg, err := s.BuildConfig()
				So(err, ShouldBeNil)
				So(cfg.Roles, ShouldResemble, []labimg.Role{labimg.Defender})
				So(cfg.BuildDir, ShouldEqual, "/srv/lab/build")
				So(cfg.CacheDir, ShouldEqual, "/srv/lab/build/cache")
				So(cfg.Kind, ShouldEqual, labimg.Kind_BlockImage)
				So(cfg.ImageSizeMB, ShouldEqual, 64)
				So(cfg.SkipPackages, ShouldBeTrue)
				So(cfg.SourceURL, ShouldEqual, labimg.DefaultSourceURL)

				Convey("and later layers can turn its bools back off", func() {
					s.Merge(Settings{SkipPackages: Bool(false)})
					cfg, err := s.BuildConfig()
					So(err, ShouldBeNil)
					So(cfg.SkipPackages, ShouldBeFalse)
				})
				Convey("and an unset layer leaves them alone", func() {
					s.Merge(Settings{})
					cfg, err := s.BuildConfig()
					So(err, ShouldBeNil)
					So(cfg.SkipPackages, ShouldBeTrue)
					So(cfg.ImageSizeMB, ShouldEqual, 64)
				})
			})
			Convey("an explicit non-positive image size is a usage error", func() {
				s := Defaults()
				s.Merge(Settings{ImageSizeMB: Int(0)})
				_, err := s.BuildConfig()
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrUsage)
			})
			Convey("a missing optional config file is ignored", func() {
				s := Defaults()
				So(LoadFile(filepath.Join(tmpDir, "nope.toml"), &s, false), ShouldBeNil)
				So(s, ShouldResemble, Defaults())
			})
			Convey("a missing required config file is a usage error", func() {
				s := Defaults()
				err := LoadFile(filepath.Join(tmpDir, "nope.toml"), &s, true)
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrUsage)
			})
			Convey("a malformed config file is a usage error", func() {
				pth := filepath.Join(tmpDir, "bad.toml")
				So(ioutil.WriteFile(pth, []byte("roles = [\n"), 0644), ShouldBeNil)
				s := Defaults()
				So(LoadFile(pth, &s, false), errcat.ErrorShouldHaveCategory, labimg.ErrUsage)
			})
			Convey("unknown keys are a usage error", func() {
				pth := filepath.Join(tmpDir, "typo.toml")
				So(ioutil.WriteFile(pth, []byte("buildir = \"x\"\n"), 0644), ShouldBeNil)
				s := Defaults()
				So(LoadFile(pth, &s, false), errcat.ErrorShouldHaveCategory, labimg.ErrUsage)
			})
			Convey("env vars override the file", func() {
				os.Setenv("LABIMG_BASE", "/env/base")
				os.Setenv("LABIMG_ASSETS", "/env/assets")
				defer os.Unsetenv("LABIMG_BASE")
				defer os.Unsetenv("LABIMG_ASSETS")
				s := Defaults()
				s.Merge(Settings{BuildDir: "/file/base", AssetsDir: "/file/assets"})
				ApplyEnv(&s)
				cfg, err := s.BuildConfig()
				So(err, ShouldBeNil)
				So(cfg.BuildDir, ShouldEqual, "/env/base")
				So(cfg.AssetsDir, ShouldEqual, "/env/assets")
				So(cfg.CacheDir, ShouldEqual, "/env/base/cache")

				Convey("and LABIMG_CACHE overrides the derived cache dir", func() {
					os.Setenv("LABIMG_CACHE", "/env/cache")
					defer os.Unsetenv("LABIMG_CACHE")
					ApplyEnv(&s)
					cfg, err := s.BuildConfig()
					So(err, ShouldBeNil)
					So(cfg.CacheDir, ShouldEqual, "/env/cache")
				})
			})
			Convey("an unknown role is a usage error", func() {
				s := Defaults()
				s.Merge(Settings{Roles: []string{"attacker", "bystander"}})
				_, err := s.BuildConfig()
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrUsage)
			})
			Convey("a repeated role is a usage error", func() {
				s := Defaults()
				s.Merge(Settings{Roles: []string{"attacker", "attacker"}})
				_, err := s.BuildConfig()
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrUsage)
			})
			Convey("an unknown kind is a usage error", func() {
				s := Defaults()
				s.Merge(Settings{Kind: "iso"})
				_, err := s.BuildConfig()
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrUsage)
			})
		})
	})
}

/*
Helpers for loading contextual config.

Config for labimg means "things that are the host machine operator's concerns":
where scratch space, caches, and lab assets live, and where to get the
base archive from.  These can come from a TOML file and from the environment;
the CLI layers its flags over the result.

Precedence, lowest first: built-in defaults, the config file, env vars, flags.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
)

// Everything an operator may configure.  Empty strings and nil pointers mean "not set".
type Settings struct {
	Roles        []string `toml:"roles"`
	BuildDir     string   `toml:"build_dir"`
	DistDir      string   `toml:"dist_dir"`
	CacheDir     string   `toml:"cache_dir"`
	AssetsDir    string   `toml:"assets_dir"`
	SourceURL    string   `toml:"source_url"`
	Kind         string   `toml:"kind"`
	ImageSizeMB  *int     `toml:"image_size_mb"`
	Force        *bool    `toml:"force"`
	KeepWorkdir  *bool    `toml:"keep_workdir"`
	SkipPackages *bool    `toml:"skip_packages"`
	LogLevel     string   `toml:"log_level"`
}

/*
Return the path of the config file to load.

The default is `"labimg.toml"` in the working directory;
this can be overriden by the `LABIMG_CONFIG` environment variable.
*/
func GetConfigFilePath() string {
	if pth := os.Getenv("LABIMG_CONFIG"); pth != "" {
		return pth
	}
	return "labimg.toml"
}

/*
Return the build dir set in the environment, or "".

`LABIMG_BASE` is the home-base path that is the default root for
per-role work dirs and the cache.
*/
func GetBasePath() string {
	return os.Getenv("LABIMG_BASE")
}

/*
Return the cache dir set in the environment, or "".

When unset, the cache is `"$LABIMG_BASE/cache"`;
this can be overriden by the `LABIMG_CACHE` environment variable.
*/
func GetCacheBasePath() string {
	return os.Getenv("LABIMG_CACHE")
}

// Return the lab assets dir set in the `LABIMG_ASSETS` environment variable, or "".
func GetAssetsPath() string {
	return os.Getenv("LABIMG_ASSETS")
}

func Defaults() Settings {
	return Settings{
		Roles:        roleNames(labimg.AllRoles()),
		BuildDir:     "build",
		DistDir:      "dist",
		AssetsDir:    ".",
		SourceURL:    labimg.DefaultSourceURL,
		Kind:         string(labimg.Kind_Archive),
		ImageSizeMB:  Int(labimg.DefaultImageSizeMB),
		Force:        Bool(false),
		KeepWorkdir:  Bool(false),
		SkipPackages: Bool(false),
		LogLevel:     "info",
	}
}

/*
Load a TOML config file over the given settings.
Only keys present in the file take effect.

A missing file is not an error; `required` makes it one
(for when the operator named the file explicitly).
*/
func LoadFile(path string, into *Settings, required bool) error {
	if _, err := os.Stat(path); os.IsNotExist(err) && !required {
		return nil
	}
	var file Settings
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Errorf(labimg.ErrUsage, "cannot load config file %s: %s", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Errorf(labimg.ErrUsage, "config file %s has unknown key %q", path, undecoded[0].String())
	}
	into.Merge(file)
	return nil
}

// Apply the `LABIMG_*` environment variables over the given settings.
func ApplyEnv(into *Settings) {
	into.Merge(Settings{
		BuildDir:  GetBasePath(),
		CacheDir:  GetCacheBasePath(),
		AssetsDir: GetAssetsPath(),
	})
}

// Overwrite any field that is set in other.
func (s *Settings) Merge(other Settings) {
	if len(other.Roles) > 0 {
		s.Roles = other.Roles
	}
	mergeString(&s.BuildDir, other.BuildDir)
	mergeString(&s.DistDir, other.DistDir)
	mergeString(&s.CacheDir, other.CacheDir)
	mergeString(&s.AssetsDir, other.AssetsDir)
	mergeString(&s.SourceURL, other.SourceURL)
	mergeString(&s.Kind, other.Kind)
	mergeString(&s.LogLevel, other.LogLevel)
	if other.ImageSizeMB != nil {
		s.ImageSizeMB = other.ImageSizeMB
	}
	if other.Force != nil {
		s.Force = other.Force
	}
	if other.KeepWorkdir != nil {
		s.KeepWorkdir = other.KeepWorkdir
	}
	if other.SkipPackages != nil {
		s.SkipPackages = other.SkipPackages
	}
}

func Bool(v bool) *bool { return &v }
func Int(v int) *int    { return &v }

func derefBool(v *bool) bool { return v != nil && *v }

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

/*
Resolve settings into a validated BuildConfig.

Dirs are made absolute.  An unset cache dir becomes `<build_dir>/cache`.
*/
func (s Settings) BuildConfig() (_ labimg.BuildConfig, err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))
	cfg := labimg.BuildConfig{
		Force:        derefBool(s.Force),
		KeepWorkdir:  derefBool(s.KeepWorkdir),
		SkipPackages: derefBool(s.SkipPackages),
		Kind:         labimg.ImageKind(s.Kind),
		SourceURL:    s.SourceURL,
	}
	if s.ImageSizeMB != nil {
		cfg.ImageSizeMB = *s.ImageSizeMB
	}
	for _, name := range s.Roles {
		role, err := labimg.ParseRole(name)
		if err != nil {
			return cfg, err
		}
		cfg.Roles = append(cfg.Roles, role)
	}
	cacheDir := s.CacheDir
	if cacheDir == "" && s.BuildDir != "" {
		cacheDir = filepath.Join(s.BuildDir, "cache")
	}
	for _, d := range []struct {
		dst *string
		src string
	}{
		{&cfg.BuildDir, s.BuildDir},
		{&cfg.DistDir, s.DistDir},
		{&cfg.CacheDir, cacheDir},
		{&cfg.AssetsDir, s.AssetsDir},
	} {
		if d.src == "" {
			continue
		}
		abs, err := filepath.Abs(d.src)
		if err != nil {
			return cfg, Errorf(labimg.ErrUsage, "cannot resolve path %q: %s", d.src, err)
		}
		*d.dst = abs
	}
	return cfg, cfg.Validate()
}

func roleNames(roles []labimg.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return names
}

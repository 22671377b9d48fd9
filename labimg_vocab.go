package labimg

// Types in this file describe one build invocation.
// They are created once from CLI input and are read-only thereafter.

import (
	"fmt"
	"strings"

	"github.com/polydawn/refmt/obj/atlas"
	. "github.com/warpfork/go-errcat"
)

// One of the closed set of lab machine roles.
type Role uint8

const (
	Attacker Role = iota
	Defender

	NumRoles = int(iota)
)

var roleNames = [NumRoles]string{
	Attacker: "attacker",
	Defender: "defender",
}

// All roles in canonical build order.
func AllRoles() []Role {
	return []Role{Attacker, Defender}
}

func (r Role) String() string {
	if int(r) >= NumRoles {
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
	return roleNames[r]
}

// The hostname a booted image of this role announces.
func (r Role) Hostname() string {
	return r.String() + "-vm"
}

func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return 0, Errorf(ErrUsage, "unknown role %q (valid roles are %s)", s, strings.Join(roleNames[:], ", "))
}

// Roles serialize as their names.
var Role_AtlasEntry = atlas.BuildEntry(Role(0)).Transform().
	TransformMarshal(atlas.MakeMarshalTransformFunc(
		func(x Role) (string, error) {
			return x.String(), nil
		})).
	TransformUnmarshal(atlas.MakeUnmarshalTransformFunc(
		func(x string) (Role, error) {
			return ParseRole(x)
		})).
	Complete()

// Output artifact format.
type ImageKind string

const (
	// A plain tar of the rootfs, gzipped.
	Kind_Archive = ImageKind("archive")
	// A fixed-size ext4 filesystem image populated from the rootfs, gzipped.
	Kind_BlockImage = ImageKind("blockimage")
)

const (
	DefaultImageSizeMB = 512
	DefaultSourceURL   = "https://dl-cdn.alpinelinux.org/alpine/v3.19/releases/x86_64/" +
		"alpine-minirootfs-3.19.1-x86_64.tar.gz"
)

type BuildConfig struct {
	Roles        []Role    // Roles to build, in order.  Non-empty, no repeats.
	BuildDir     string    // Scratch space for per-role working dirs.
	DistDir      string    // Final images and the manifest land here.
	CacheDir     string    // Downloaded base archives are kept here across runs.
	AssetsDir    string    // Lab source files are resolved relative to this.
	Force        bool      // Re-extract rootfs even if a working dir exists.
	KeepWorkdir  bool      // Do not delete per-role working dirs after packaging.
	SkipPackages bool      // Do not attempt chroot package provisioning.
	Kind         ImageKind // Output format.
	ImageSizeMB  int       // Size of the raw block image; positive, only used with Kind_BlockImage.
	SourceURL    string    // Where to fetch the base minimal rootfs archive.
}

func (cfg BuildConfig) Validate() error {
	if len(cfg.Roles) == 0 {
		return Errorf(ErrUsage, "at least one role must be selected")
	}
	seen := map[Role]struct{}{}
	for _, r := range cfg.Roles {
		if int(r) >= NumRoles {
			return Errorf(ErrUsage, "unknown role %s", r)
		}
		if _, dup := seen[r]; dup {
			return Errorf(ErrUsage, "role %s selected more than once", r)
		}
		seen[r] = struct{}{}
	}
	for name, dir := range map[string]string{"build": cfg.BuildDir, "dist": cfg.DistDir, "cache": cfg.CacheDir} {
		if dir == "" {
			return Errorf(ErrUsage, "%s directory must be set", name)
		}
	}
	switch cfg.Kind {
	case Kind_Archive, Kind_BlockImage:
	default:
		return Errorf(ErrUsage, "unknown image kind %q (valid options are %q or %q)", cfg.Kind, Kind_Archive, Kind_BlockImage)
	}
	if cfg.ImageSizeMB <= 0 {
		return Errorf(ErrUsage, "image size must be a positive number of MB (got %d)", cfg.ImageSizeMB)
	}
	if cfg.SourceURL == "" {
		return Errorf(ErrUsage, "source archive url must be set")
	}
	return nil
}

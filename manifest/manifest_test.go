package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	stdjson "encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/fs"
	"github.com/polydawn/labimg/packager"
	. "github.com/polydawn/labimg/testutil"
)

type serialRecord struct {
	Role      string `json:"role"`
	File      string `json:"file"`
	SizeBytes int64  `json:"size_bytes"`
	Sha256    string `json:"sha256"`
}

func readManifest(distDir string) (images []serialRecord) {
	bs, err := ioutil.ReadFile(filepath.Join(distDir, Filename))
	So(err, ShouldBeNil)
	var doc struct {
		Images []serialRecord `json:"images"`
	}
	So(stdjson.Unmarshal(bs, &doc), ShouldBeNil)
	return doc.Images
}

func hexSum(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestBuild(t *testing.T) {
	Convey("Build:", t, func() {
		WithTmpdir(func(tmpDir fs.AbsolutePath) {
			distDir := tmpDir.String()

			Convey("every artifact gets exactly one matching record, in order", func() {
				// Bigger than one hashing chunk, to cover the chunked read.
				big := strings.Repeat("defender bytes ", 100000)
				WriteFile(filepath.Join(distDir, "defender.img.gz"), big, 0644)
				WriteFile(filepath.Join(distDir, "attacker.img.gz"), "attacker bytes", 0644)
				arts := []packager.Artifact{
					{Role: labimg.Defender, Path: filepath.Join(distDir, "defender.img.gz")},
					{Role: labimg.Attacker, Path: filepath.Join(distDir, "attacker.img.gz")},
				}

				m, err := Build(Logger(), distDir, arts)
				So(err, ShouldBeNil)
				So(m.Images, ShouldHaveLength, 2)

				images := readManifest(distDir)
				So(images, ShouldResemble, []serialRecord{
					{"defender", "defender.img.gz", int64(len(big)), hexSum(big)},
					{"attacker", "attacker.img.gz", 14, hexSum("attacker bytes")},
				})
			})
			Convey("the manifest is pretty-printed", func() {
				WriteFile(filepath.Join(distDir, "attacker.img.gz"), "x", 0644)
				_, err := Build(Logger(), distDir, []packager.Artifact{{Role: labimg.Attacker, Path: filepath.Join(distDir, "attacker.img.gz")}})
				So(err, ShouldBeNil)
				So(ReadFile(filepath.Join(distDir, Filename)), ShouldContainSubstring, "\n  \"images\": [")
			})
			Convey("no artifacts is an empty list, not null", func() {
				_, err := Build(Logger(), distDir, nil)
				So(err, ShouldBeNil)
				So(ReadFile(filepath.Join(distDir, Filename)), ShouldContainSubstring, "[")
				So(readManifest(distDir), ShouldBeEmpty)
			})
			Convey("a missing artifact fails without writing a manifest", func() {
				_, err := Build(Logger(), distDir, []packager.Artifact{{Role: labimg.Attacker, Path: filepath.Join(distDir, "nope.img.gz")}})
				So(err, errcat.ErrorShouldHaveCategory, labimg.ErrBuild)
				_, statErr := os.Stat(filepath.Join(distDir, Filename))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})
}

/*
The manifest records, for every image in a dist dir, its size and sha256,
so consumers can verify what they downloaded.

It is written once, in full, after every role has been packaged.
*/
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	"github.com/polydawn/refmt/obj/atlas"
	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/packager"
)

const Filename = "images.json"

// Hashing reads files in chunks of this size.
const chunkSize = 1 << 20

type Manifest struct {
	Images []Record
}

type Record struct {
	Role      labimg.Role
	File      string // Base name within the dist dir.
	SizeBytes int64
	Sha256    string // Lowercase hex.
}

var Atlas = atlas.MustBuild(
	atlas.BuildEntry(Manifest{}).StructMap().
		AddField("Images", atlas.StructMapEntry{SerialName: "images"}).
		Complete(),
	atlas.BuildEntry(Record{}).StructMap().
		AddField("Role", atlas.StructMapEntry{SerialName: "role"}).
		AddField("File", atlas.StructMapEntry{SerialName: "file"}).
		AddField("SizeBytes", atlas.StructMapEntry{SerialName: "size_bytes"}).
		AddField("Sha256", atlas.StructMapEntry{SerialName: "sha256"}).
		Complete(),
	labimg.Role_AtlasEntry,
)

/*
Describe the given artifacts, in the given order, and write the result to
`images.json` in distDir with a single full write.
*/
func Build(log logrus.FieldLogger, distDir string, artifacts []packager.Artifact) (_ Manifest, err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))

	m := Manifest{Images: make([]Record, 0, len(artifacts))}
	for _, art := range artifacts {
		rec, err := Describe(art)
		if err != nil {
			return Manifest{}, err
		}
		m.Images = append(m.Images, rec)
	}

	bs, err := refmt.MarshalAtlased(json.EncodeOptions{Line: []byte{'\n'}, Indent: []byte("  ")}, m, Atlas)
	if err != nil {
		return Manifest{}, Errorf(labimg.ErrBuild, "cannot serialize manifest: %s", err)
	}
	manifestPath := filepath.Join(distDir, Filename)
	if err := ioutil.WriteFile(manifestPath, append(bs, '\n'), 0644); err != nil {
		return Manifest{}, Errorf(labimg.ErrBuild, "cannot write manifest: %s", err)
	}
	log.WithField("path", manifestPath).Info("wrote manifest")
	return m, nil
}

// Stat and hash one artifact.
func Describe(art packager.Artifact) (Record, error) {
	fi, err := os.Stat(art.Path)
	if err != nil {
		return Record{}, Errorf(labimg.ErrBuild, "cannot describe %s image: %s", art.Role, err)
	}
	sum, err := HashFile(art.Path)
	if err != nil {
		return Record{}, Errorf(labimg.ErrBuild, "cannot describe %s image: %s", art.Role, err)
	}
	return Record{
		Role:      art.Role,
		File:      filepath.Base(art.Path),
		SizeBytes: fi.Size(),
		Sha256:    sum,
	}, nil
}

// The sha256 of a file's content, as lowercase hex.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.CopyBuffer(hasher, f, make([]byte, chunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

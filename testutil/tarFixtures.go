package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io/ioutil"
	"time"
)

// Because golang's time.Time zero value causes Nonsense to occur.
var FixtureTime = time.Date(1990, 1, 14, 12, 30, 0, 0, time.UTC)

type TarEntry struct {
	Name     string
	Type     byte // tar.TypeReg if zero
	Mode     int64
	Body     string
	Linkname string
}

func File(name, body string) TarEntry {
	return TarEntry{Name: name, Type: tar.TypeReg, Mode: 0644, Body: body}
}
func Dir(name string) TarEntry {
	return TarEntry{Name: name, Type: tar.TypeDir, Mode: 0755}
}
func Symlink(name, target string) TarEntry {
	return TarEntry{Name: name, Type: tar.TypeSymlink, Mode: 0777, Linkname: target}
}
func Hardlink(name, target string) TarEntry {
	return TarEntry{Name: name, Type: tar.TypeLink, Mode: 0644, Linkname: target}
}

/*
Serialize entries, in order, as a tar stream; gzipped if requested.
*/
func Tarball(gz bool, entries ...TarEntry) []byte {
	var buf bytes.Buffer
	var gzw *gzip.Writer
	tw := tar.NewWriter(&buf)
	if gz {
		gzw = gzip.NewWriter(&buf)
		tw = tar.NewWriter(gzw)
	}
	for _, ent := range entries {
		typ := ent.Type
		if typ == 0 {
			typ = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     ent.Name,
			Typeflag: typ,
			Mode:     ent.Mode,
			Linkname: ent.Linkname,
			ModTime:  FixtureTime,
		}
		if typ == tar.TypeReg {
			hdr.Size = int64(len(ent.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if typ == tar.TypeReg {
			if _, err := tw.Write([]byte(ent.Body)); err != nil {
				panic(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		panic(err)
	}
	if gzw != nil {
		if err := gzw.Close(); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func WriteTarball(path string, gz bool, entries ...TarEntry) {
	if err := ioutil.WriteFile(path, Tarball(gz, entries...), 0644); err != nil {
		panic(err)
	}
}

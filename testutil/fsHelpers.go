package testutil

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/labimg/fs"
)

/*
Makes a tempdir, hands it to the callback, and removes it after.

The path is made absolute and symlink-free, so tests can compare it
against paths the code under test derives.
*/
func WithTmpdir(fn func(tmpDir fs.AbsolutePath)) {
	dir, err := ioutil.TempDir("", "labimg-test-")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	dir, err = filepath.EvalSymlinks(dir)
	if err != nil {
		panic(err)
	}
	fn(fs.MustAbsolutePath(dir))
}

func ShouldStat(afs fs.FS, path fs.RelPath) fs.Metadata {
	stat, err := afs.LStat(path)
	convey.So(err, convey.ShouldBeNil)
	stat.Mtime = stat.Mtime.UTC()
	return *stat
}

// Write a file with the given body, making parent dirs as needed.  Panics on failure.
func WriteFile(path string, body string, perm os.FileMode) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		panic(err)
	}
	if err := ioutil.WriteFile(path, []byte(body), perm); err != nil {
		panic(err)
	}
}

func ReadFile(path string) string {
	bs, err := ioutil.ReadFile(path)
	convey.So(err, convey.ShouldBeNil)
	return string(bs)
}

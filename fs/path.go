package fs

import (
	"path"
	"strings"
)

// Meta: yep, these *are not* interchangeable.
// It's expected that if you *can* accept an AbsolutePath,
//  then you should normalize to that ASAP;
// and if you can't, then clearly it's correct to use the RelPath,
//  through and through the whole way.

type RelPath struct {
	path      string
	lastSplit int
}

func MustRelPath(p string) RelPath {
	p = path.Clean(p)
	if p[0] == '/' {
		panic("fs: relpath must not be rooted: " + p)
	}
	if p == "." { // We can't stop people from using the zero value, so, use it.
		return RelPath{}
	}
	return RelPath{p, strings.LastIndexByte(p, '/')}
}

/*
Like MustRelPath, but leading slashes are stripped instead of rejected.

Archive member names and symlink targets are frequently rooted
("/bin/busybox"); within a rootfs these mean "relative to the rootfs".
*/
func Rerooted(p string) RelPath {
	p = path.Clean("/" + p)
	if p == "/" {
		return RelPath{}
	}
	return MustRelPath(p[1:])
}

func (p RelPath) String() string {
	if p.path == "" {
		return "."
	} else if p.GoesUp() {
		return p.path
	} else {
		return "./" + p.path
	}
}

// The path without the "./" prefix; "." for the zero value.
func (p RelPath) Plain() string {
	if p.path == "" {
		return "."
	}
	return p.path
}

func (p RelPath) Dir() RelPath {
	if p.path == "" {
		return p
	} else if p.lastSplit == -1 {
		return RelPath{}
	} else {
		p2 := p.path[0:p.lastSplit]
		return RelPath{p2, strings.LastIndexByte(p2, '/')}
	}
}
func (p RelPath) Last() string {
	if p.path == "" {
		return "."
	} else if p.lastSplit == -1 {
		return p.path
	} else {
		return p.path[p.lastSplit+1:]
	}
}
func (p RelPath) Join(p2 RelPath) RelPath {
	switch {
	case p2.path == "":
		return p
	case p.path == "":
		return p2
	default:
		return MustRelPath(p.path + "/" + p2.path)
	}
}

// True if the path starts with "..", i.e. departs whatever it's relative to.
func (p RelPath) GoesUp() bool {
	return p.path == ".." || strings.HasPrefix(p.path, "../")
}

/*
Return every parent of this path, shallowest first, not including
the zero path nor the path itself.

For "a/b/c" this is ["a", "a/b"].
*/
func (p RelPath) SplitParent() []RelPath {
	var parents []RelPath
	for d := p.Dir(); d != (RelPath{}); d = d.Dir() {
		parents = append(parents, d)
	}
	for i, j := 0, len(parents)-1; i < j; i, j = i+1, j-1 {
		parents[i], parents[j] = parents[j], parents[i]
	}
	return parents
}

type AbsolutePath struct {
	path      string
	lastSplit int
}

func MustAbsolutePath(p string) AbsolutePath {
	p = path.Clean(p)
	if p[0] != '/' {
		panic("fs: absolute path must be rooted: " + p)
	}
	if p == "/" { // We can't stop people from using the zero value, so, use it.
		return AbsolutePath{}
	}
	return AbsolutePath{p, strings.LastIndexByte(p, '/')}
}
func (p AbsolutePath) String() string {
	if p.path == "" {
		return "/"
	}
	return p.path
}
func (p AbsolutePath) Dir() AbsolutePath {
	if p.path == "" {
		return p
	} else if p.lastSplit == 0 {
		return AbsolutePath{}
	} else {
		p2 := p.path[0:p.lastSplit]
		return AbsolutePath{p2, strings.LastIndexByte(p2, '/')}
	}
}
func (p AbsolutePath) Last() string {
	if p.path == "" {
		return "/"
	} else {
		return p.path[p.lastSplit+1:]
	}
}
func (p AbsolutePath) Join(p2 RelPath) AbsolutePath {
	switch {
	case p2.path == "":
		return p
	default:
		return AbsolutePath{p.path + "/" + p2.path, len(p.path) + p2.lastSplit + 1}
	}
}

package fs

import (
	"time"
)

type Metadata struct {
	Name     RelPath   // filename
	Type     Type      // type enum
	Perms    Perms     // permission bits
	Size     int64     // length in bytes
	Linkname string    // if symlink or hardlink: target name of link
	Mtime    time.Time // modified time
}

type Type string

const (
	Type_Invalid    Type = ""
	Type_File       Type = "F"
	Type_Dir        Type = "D"
	Type_Symlink    Type = "L"
	Type_Hardlink   Type = "H"
	Type_NamedPipe  Type = "P"
	Type_Socket     Type = "S"
	Type_Device     Type = "B"
	Type_CharDevice Type = "C"
)

func (t Type) String() string {
	switch t {
	case Type_File:
		return "file"
	case Type_Dir:
		return "dir"
	case Type_Symlink:
		return "symlink"
	case Type_Hardlink:
		return "hardlink"
	case Type_NamedPipe:
		return "fifo"
	case Type_Socket:
		return "socket"
	case Type_Device:
		return "blockdev"
	case Type_CharDevice:
		return "chardev"
	default:
		return "invalid"
	}
}

// Permission bits, including setuid, setgid, and sticky (so, 07777).
type Perms uint16

const (
	Perms_Sticky Perms = 01000
	Perms_Setgid Perms = 02000
	Perms_Setuid Perms = 04000
)

// The atime we set on everything we touch.  We don't track atimes.
var DefaultAtime = time.Unix(0, 0).UTC()

package tartrans

import (
	"archive/tar"

	"github.com/polydawn/labimg/fs"
)

// Mutate tar.Header fields to match the given fmeta.
// Ownership is not tracked: everything in an image is owned by root.
func MetadataToTarHdr(fmeta *fs.Metadata, hdr *tar.Header) {
	hdr.Name = fmeta.Name.String()
	if fmeta.Type == fs.Type_Dir {
		hdr.Name += "/"
	}
	hdr.Typeflag = fsTypeToTarType(fmeta.Type)
	hdr.Mode = int64(fmeta.Perms)
	hdr.Uid = 0
	hdr.Gid = 0
	hdr.Size = 0
	if fmeta.Type == fs.Type_File {
		hdr.Size = fmeta.Size
	}
	hdr.Linkname = fmeta.Linkname
	hdr.ModTime = fmeta.Mtime
}

func fsTypeToTarType(fsType fs.Type) byte {
	switch fsType {
	case fs.Type_File:
		return tar.TypeReg
	case fs.Type_Hardlink:
		return tar.TypeLink
	case fs.Type_Symlink:
		return tar.TypeSymlink
	case fs.Type_CharDevice:
		return tar.TypeChar
	case fs.Type_Device:
		return tar.TypeBlock
	case fs.Type_Dir:
		return tar.TypeDir
	case fs.Type_NamedPipe:
		return tar.TypeFifo
	default:
		// Notice that tar does not have a type for socket files.
		return 0
	}
}

// Mutate fs.Metadata fields to match the given tar header.
// The name is not touched; the caller sanitizes and sets it.
// Unknown entry types come out as fs.Type_Invalid.
func TarHdrToMetadata(hdr *tar.Header, fmeta *fs.Metadata) {
	fmeta.Type = tarTypeToFsType(hdr.Typeflag)
	fmeta.Perms = fs.Perms(hdr.Mode & 07777)
	fmeta.Size = hdr.Size
	fmeta.Linkname = hdr.Linkname
	fmeta.Mtime = hdr.ModTime
}

func tarTypeToFsType(tarType byte) fs.Type {
	switch tarType {
	case tar.TypeReg, tar.TypeRegA:
		return fs.Type_File
	case tar.TypeLink:
		return fs.Type_Hardlink
	case tar.TypeSymlink:
		return fs.Type_Symlink
	case tar.TypeChar:
		return fs.Type_CharDevice
	case tar.TypeBlock:
		return fs.Type_Device
	case tar.TypeDir:
		return fs.Type_Dir
	case tar.TypeFifo:
		return fs.Type_NamedPipe
	default:
		return fs.Type_Invalid
	}
}

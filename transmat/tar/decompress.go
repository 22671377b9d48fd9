package tartrans

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"

	"github.com/xi2/xz"
)

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicXz    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

/*
Wrap a reader with decompression as necessary.
Which kind of decompression to use is autodetected by magic bytes;
anything unrecognized is passed through as-is (presumably plain tar).
*/
func Decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(magicXz))
	if err != nil && err != io.EOF {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(magic, magicGzip):
		return gzip.NewReader(br)
	case bytes.HasPrefix(magic, magicXz):
		return xz.NewReader(br, 0)
	case bytes.HasPrefix(magic, magicBzip2):
		return bzip2.NewReader(br), nil
	default:
		return br, nil
	}
}

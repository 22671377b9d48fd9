package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"

	"github.com/polydawn/labimg/manifest"
)

// Report the build's outcome: the manifest on stdout, or the error on stderr.
func SerializeResult(format string, mf manifest.Manifest, resultErr error, stdout io.Writer, stderr io.Writer) {
	if resultErr != nil {
		fmt.Fprintf(stderr, "labimg: %s\n", resultErr)
		return
	}
	switch format {
	case FmtJson:
		marshaller := refmt.NewMarshallerAtlased(json.EncodeOptions{Line: []byte{'\n'}, Indent: []byte{' ', ' '}}, stdout, manifest.Atlas)
		if err := marshaller.Marshal(&mf); err != nil {
			panic(err)
		}
		fmt.Fprintln(stdout)
	case FmtDumb:
		for _, rec := range mf.Images {
			fmt.Fprintf(stdout, "%s\t%s\t%d\t%s\n", rec.Role, filepath.Base(rec.File), rec.SizeBytes, rec.Sha256)
		}
	default:
		panic(fmt.Errorf("labimg: invalid format %s", format))
	}
}

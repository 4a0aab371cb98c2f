package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// findMember streams a gzip-compressed tar and returns the first regular member whose
// name ends in the markup extension.
func (r *Reader) findMember(src io.Reader) (string, []byte, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		return "", nil, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return "", nil, ErrNoMarkup
		}
		if err != nil {
			return "", nil, fmt.Errorf("tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(hdr.Name), r.markupExt) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return "", nil, fmt.Errorf("read member %s: %w", hdr.Name, err)
		}
		return hdr.Name, data, nil
	}
}

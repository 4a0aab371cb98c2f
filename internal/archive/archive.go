// Package archive reads article payloads from .tar.gz archives and plain text files.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported input suffixes.
const (
	ExtTarGz = ".tar.gz"
	ExtText  = ".txt"
)

var (
	// ErrUnsupported is returned for paths that are neither .tar.gz nor .txt.
	ErrUnsupported = errors.New("unsupported input type")
	// ErrNoMarkup is returned when an archive holds no member with the markup extension.
	ErrNoMarkup = errors.New("no article markup member in archive")
)

// Kind tells the caller how to interpret a payload.
type Kind int

const (
	// KindMarkup is article XML taken from an archive member.
	KindMarkup Kind = iota
	// KindText is plain text, already valid UTF-8.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindMarkup:
		return "markup"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Payload is the raw content of one input file.
type Payload struct {
	Kind Kind
	Data []byte
	// Member is the archive member name the markup came from; empty for text.
	Member string
}

// Reader opens input files. The zero value is not usable; use NewReader.
type Reader struct {
	markupExt string
}

// NewReader returns a Reader that looks for archive members ending in markupExt
// (e.g. ".nxml"). Matching is case-insensitive.
func NewReader(markupExt string) *Reader {
	return &Reader{markupExt: strings.ToLower(markupExt)}
}

// Supported reports whether path has an extension the Reader can open.
func Supported(path string) bool {
	_, ok := kindOf(path)
	return ok
}

// Stem returns the base name of path with a supported extension removed.
func Stem(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, ext := range []string{ExtTarGz, ExtText} {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

func kindOf(path string) (Kind, bool) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ExtTarGz):
		return KindMarkup, true
	case strings.HasSuffix(lower, ExtText):
		return KindText, true
	default:
		return 0, false
	}
}

// Read opens path and returns its payload. Archives yield the first markup member;
// text files are decoded with invalid UTF-8 replaced. Errors wrap ErrUnsupported,
// ErrNoMarkup, or the underlying I/O failure.
func (r *Reader) Read(path string) (*Payload, error) {
	kind, ok := kindOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	if kind == KindText {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return &Payload{Kind: KindText, Data: decodePlain(content)}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	name, data, err := r.findMember(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Payload{Kind: KindMarkup, Data: data, Member: name}, nil
}

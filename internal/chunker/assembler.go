// Package chunker turns article archives and text files into tagged chunk records.
package chunker

import (
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strconv"

	"github.com/BonelessWater/aura/internal/archive"
	"github.com/BonelessWater/aura/internal/article"
	"github.com/BonelessWater/aura/internal/chunkid"
	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/models"
	"github.com/BonelessWater/aura/internal/segment"
	"github.com/BonelessWater/aura/internal/tagger"
	"go.uber.org/zap"
)

// Document is one input file after reading and parsing, before windowing.
type Document struct {
	Path    string
	Article *models.ArticleRecord
	Key     string // chunk id key: DOI or filename, optionally widened
	PMCID   string
	Text    string
}

// Assembler combines the archive reader, parser, segmenter and tagger.
type Assembler struct {
	reader    *archive.Reader
	segmenter *segment.Segmenter
	tagger    *tagger.Tagger
	widen     bool
	logger    *zap.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger used for skipped files. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// WithWidenedKeys makes chunk ids depend on the source path as well as the DOI or filename.
func WithWidenedKeys(widen bool) Option {
	return func(a *Assembler) { a.widen = widen }
}

// New creates an Assembler from its parts.
func New(reader *archive.Reader, seg *segment.Segmenter, tg *tagger.Tagger, opts ...Option) *Assembler {
	a := &Assembler{
		reader:    reader,
		segmenter: seg,
		tagger:    tg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig builds an Assembler from chunking settings and cluster lexicons.
func NewFromConfig(cfg *config.ChunkingConfig, clusters config.Clusters, opts ...Option) (*Assembler, error) {
	seg, err := segment.New(cfg.WindowSize, cfg.OverlapOrDefault(), segment.Overflow(cfg.Overflow))
	if err != nil {
		return nil, fmt.Errorf("segmenter: %w", err)
	}
	opts = append([]Option{WithWidenedKeys(cfg.WidenChunkKey)}, opts...)
	return New(archive.NewReader(cfg.MarkupExtension), seg, tagger.New(clusters), opts...), nil
}

// Load reads and parses the file at path. Plain text files become a body-only article.
// The returned Document may have empty Text.
func (a *Assembler) Load(path string) (*Document, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	payload, err := a.reader.Read(path)
	if err != nil {
		return nil, err
	}
	var art *models.ArticleRecord
	switch payload.Kind {
	case archive.KindMarkup:
		art, err = article.Parse(payload.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		art = &models.ArticleRecord{Body: string(payload.Data)}
	}
	pmc := models.Deref(art.PMCID)
	if pmc == "" {
		pmc = archive.Stem(path)
	}
	return &Document{
		Path:    path,
		Article: art,
		Key:     chunkid.DocumentKey(art.DOI, path, a.widen),
		PMCID:   pmc,
		Text:    segment.Compose(art.Abstract, art.Body),
	}, nil
}

// Chunks windows and tags doc, yielding records in window order.
func (a *Assembler) Chunks(doc *Document) iter.Seq[*models.ChunkRecord] {
	return func(yield func(*models.ChunkRecord) bool) {
		i := 0
		for text := range a.segmenter.Windows(doc.Text) {
			rec := &models.ChunkRecord{
				ChunkID: chunkid.ChunkID(doc.Key, i),
				DOI:     doc.Article.DOI,
				Journal: doc.Article.Journal,
				Year:    doc.Article.Year,
				Section: sectionLabel(i),
				Text:    text,
				PMCID:   doc.PMCID,
				Source:  doc.Path,
				Index:   i,
			}
			if tag, ok := a.tagger.Tag(text); ok {
				rec.ClusterTag = &tag
			}
			if !yield(rec) {
				return
			}
			i++
		}
	}
}

// File yields the chunk records of one input file. Files that cannot be read or
// parsed are logged and yield nothing.
func (a *Assembler) File(path string) iter.Seq[*models.ChunkRecord] {
	return func(yield func(*models.ChunkRecord) bool) {
		doc, err := a.Load(path)
		if err != nil {
			a.logSkip(path, err)
			return
		}
		if doc.Text == "" {
			a.logger.Debug("no text in file", zap.String("path", doc.Path))
			return
		}
		for rec := range a.Chunks(doc) {
			if !yield(rec) {
				return
			}
		}
	}
}

// Batch yields the records of each path in turn as one sequence.
func (a *Assembler) Batch(paths []string) iter.Seq[*models.ChunkRecord] {
	return func(yield func(*models.ChunkRecord) bool) {
		for _, p := range paths {
			for rec := range a.File(p) {
				if !yield(rec) {
					return
				}
			}
		}
	}
}

// Directory discovers inputs under dir and yields their records in path order.
func (a *Assembler) Directory(dir string) (iter.Seq[*models.ChunkRecord], error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("discovered inputs", zap.String("dir", dir), zap.Int("files", len(paths)))
	return a.Batch(paths), nil
}

func (a *Assembler) logSkip(path string, err error) {
	switch {
	case errors.Is(err, archive.ErrNoMarkup):
		a.logger.Warn("archive has no article markup, skipping", zap.String("path", path))
	case errors.Is(err, article.ErrMalformed):
		a.logger.Warn("malformed article markup, skipping", zap.String("path", path), zap.Error(err))
	default:
		a.logger.Warn("cannot read input, skipping", zap.String("path", path), zap.Error(err))
	}
}

func sectionLabel(i int) string {
	if i == 0 {
		return models.SectionAbstract
	}
	return models.SectionBodyPrefix + strconv.Itoa(i)
}

package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BonelessWater/aura/internal/testutil"
)

// Extra inputs written next to the corpus archives.
const (
	// NotesFile is a plain-text input; it has no article metadata.
	NotesFile = "clinic-notes.txt"
	// BrokenFile is an archive with no article markup member.
	BrokenFile = "PMC9999999.tar.gz"
)

// notesText mentions celiac disease twice so it is tagged Gastrointestinal.
const notesText = "Clinic notes on celiac disease follow-up. Coeliac serology was repeated at six months."

// WriteCorpus writes each article as "<pmc>.tar.gz" under dir/<journal-year>/, plus the
// plain-text notes and the broken archive at the top of dir. It returns the article paths
// keyed by PMC id.
func WriteCorpus(dir string, c *Corpus) (map[string]string, error) {
	paths := make(map[string]string, len(c.Articles))
	for _, a := range c.Articles {
		sub := filepath.Join(dir, strconv.Itoa(a.Year))
		if err := os.MkdirAll(sub, 0755); err != nil {
			return nil, err
		}
		path := filepath.Join(sub, a.PMCID+".tar.gz")
		err := testutil.WriteArticleArchive(path, a.PMCID, testutil.Article{
			DOI:        a.DOI,
			PMCID:      a.PMCID,
			Journal:    a.Journal,
			Title:      a.Title,
			Year:       strconv.Itoa(a.Year),
			Abstract:   a.Abstract,
			Paragraphs: a.Body,
		})
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", a.PMCID, err)
		}
		paths[a.PMCID] = path
	}

	if err := os.WriteFile(filepath.Join(dir, NotesFile), []byte(notesText), 0644); err != nil {
		return nil, err
	}
	broken, err := testutil.TarGz(testutil.Member{Name: "PMC9999999/figure1.jpg", Body: []byte{0xff, 0xd8, 0xff}})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, BrokenFile), broken, 0644); err != nil {
		return nil, err
	}
	return paths, nil
}

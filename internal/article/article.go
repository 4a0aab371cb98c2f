// Package article parses JATS-style article markup into an ArticleRecord.
package article

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BonelessWater/aura/internal/models"
)

// ErrMalformed is wrapped by every error caused by markup that cannot be parsed.
var ErrMalformed = errors.New("malformed article markup")

// Parse extracts identifiers, journal, title, year, abstract and body text from
// article markup. Namespace prefixes are ignored. Fields the markup lacks are nil.
func Parse(data []byte) (*models.ArticleRecord, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, err
	}
	rec := &models.ArticleRecord{}

	for _, id := range root.findAll("article-id") {
		val := strings.TrimSpace(id.innerText())
		if val == "" {
			continue
		}
		switch id.attrs["pub-id-type"] {
		case "doi":
			if rec.DOI == nil {
				rec.DOI = models.StringPtr(val)
			}
		case "pmc":
			if rec.PMCID == nil {
				rec.PMCID = models.StringPtr(val)
			}
		}
	}

	if n := root.find("journal-title"); n != nil {
		rec.Journal = models.StringPtr(strings.TrimSpace(n.innerText()))
	}
	if n := root.find("article-title"); n != nil {
		rec.Title = models.StringPtr(strings.TrimSpace(n.innerText()))
	}
	if n := root.find("year"); n != nil {
		if y, err := strconv.Atoi(strings.TrimSpace(n.innerText())); err == nil {
			rec.Year = models.IntPtr(y)
		}
	}
	if n := root.find("abstract"); n != nil {
		rec.Abstract = joinNonEmpty(n.fragments())
	}
	if n := root.find("body"); n != nil {
		var parts []string
		n.walk(func(x *node) bool {
			if x.name == "p" || x.name == "title" {
				parts = append(parts, x.innerText())
			}
			return true
		})
		rec.Body = joinNonEmpty(parts)
	}
	return rec, nil
}

// ParseReader reads all of r and parses it.
func ParseReader(r io.Reader) (*models.ArticleRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markup: %w", err)
	}
	return Parse(data)
}

// joinNonEmpty trims each part, drops empty ones, and joins the rest with single spaces.
func joinNonEmpty(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// Package testutil builds article markup and archive fixtures for tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Article describes a JATS-style article. Empty fields are left out of the markup.
type Article struct {
	DOI        string
	PMCID      string
	Journal    string
	Title      string
	Year       string
	Abstract   []string
	Paragraphs []string
	// Prefix, when set, namespaces every element as Prefix:name.
	Prefix string
}

// Member is one entry of a tar archive.
type Member struct {
	Name string
	Body []byte
}

// XML renders the article as markup.
func (a Article) XML() []byte {
	el := func(name string) string {
		if a.Prefix == "" {
			return name
		}
		return a.Prefix + ":" + name
	}
	var b strings.Builder
	open := func(name, attrs string) {
		b.WriteString("<" + el(name) + attrs + ">")
	}
	closeEl := func(name string) {
		b.WriteString("</" + el(name) + ">")
	}
	text := func(name, attrs, s string) {
		if s == "" {
			return
		}
		open(name, attrs)
		_ = xml.EscapeText(&b, []byte(s))
		closeEl(name)
	}

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	ns := ""
	if a.Prefix != "" {
		ns = fmt.Sprintf(` xmlns:%s="http://jats.nlm.nih.gov"`, a.Prefix)
	}
	open("article", ns)
	open("front", "")
	open("journal-meta", "")
	text("journal-title", "", a.Journal)
	closeEl("journal-meta")
	open("article-meta", "")
	text("article-id", ` pub-id-type="pmc"`, a.PMCID)
	text("article-id", ` pub-id-type="doi"`, a.DOI)
	if a.Title != "" {
		open("title-group", "")
		text("article-title", "", a.Title)
		closeEl("title-group")
	}
	if a.Year != "" {
		open("pub-date", "")
		text("year", "", a.Year)
		closeEl("pub-date")
	}
	if len(a.Abstract) > 0 {
		open("abstract", "")
		for _, p := range a.Abstract {
			text("p", "", p)
		}
		closeEl("abstract")
	}
	closeEl("article-meta")
	closeEl("front")
	if len(a.Paragraphs) > 0 {
		open("body", "")
		open("sec", "")
		for _, p := range a.Paragraphs {
			text("p", "", p)
		}
		closeEl("sec")
		closeEl("body")
	}
	closeEl("article")
	return []byte(b.String())
}

// TarGz returns a gzip-compressed tar holding members in order.
func TarGz(members ...Member) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, m := range members {
		hdr := &tar.Header{Name: m.Name, Mode: 0644, Size: int64(len(m.Body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(m.Body); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteArticleArchive writes a .tar.gz at path holding the article as "<stem>/<stem>.nxml"
// alongside an image member.
func WriteArticleArchive(path, stem string, a Article) error {
	data, err := TarGz(
		Member{Name: stem + "/figure1.jpg", Body: []byte{0xff, 0xd8, 0xff}},
		Member{Name: stem + "/" + stem + ".nxml", Body: a.XML()},
	)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Words returns n distinct tokens "prefix0 prefix1 ..." joined by spaces.
func Words(prefix string, n int) string {
	toks := make([]string, n)
	for i := range toks {
		toks[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(toks, " ")
}

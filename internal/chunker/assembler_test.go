package chunker

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/BonelessWater/aura/internal/chunkid"
	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/models"
	"github.com/BonelessWater/aura/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestAssembler(t *testing.T, size, overlap int, opts ...Option) *Assembler {
	t.Helper()
	cfg := &config.ChunkingConfig{
		WindowSize:      size,
		Overlap:         &overlap,
		Overflow:        config.OverflowKeep,
		MarkupExtension: ".nxml",
	}
	clusters := config.Clusters{
		{Name: "Systemic", Keywords: []string{"lupus"}},
		{Name: "Neurological", Keywords: []string{"sclerosis", "myelin"}},
	}
	a, err := NewFromConfig(cfg, clusters, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func writeArchive(t *testing.T, dir, stem string, a testutil.Article) string {
	t.Helper()
	path := filepath.Join(dir, stem+".tar.gz")
	if err := testutil.WriteArticleArchive(path, stem, a); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFile_singleArticle(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "PMC100", testutil.Article{
		DOI:        "10.1/x",
		Journal:    "Lupus Science",
		Year:       "2021",
		Paragraphs: []string{"Hello lupus world."},
	})
	a := newTestAssembler(t, 256, 32)
	recs := slices.Collect(a.File(path))
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	r := recs[0]
	if r.ChunkID != chunkid.ChunkID("10.1/x", 0) {
		t.Errorf("chunk id = %s", r.ChunkID)
	}
	if r.Section != "abstract" {
		t.Errorf("section = %s", r.Section)
	}
	if r.ClusterTag == nil || *r.ClusterTag != "Systemic" {
		t.Errorf("cluster = %v", r.ClusterTag)
	}
	if r.DOI == nil || *r.DOI != "10.1/x" || r.Year == nil || *r.Year != 2021 {
		t.Errorf("metadata = doi %v year %v", r.DOI, r.Year)
	}
	if r.PMCID != "PMC100" {
		t.Errorf("pmc_id should fall back to the stem, got %q", r.PMCID)
	}
	if r.Text != "Hello lupus world." {
		t.Errorf("text = %q", r.Text)
	}
	if r.Source != path {
		t.Errorf("source = %s, want %s", r.Source, path)
	}
}

func TestFile_sectionsAndIDs(t *testing.T) {
	dir := t.TempDir()
	var paras []string
	for i := 0; i < 6; i++ {
		paras = append(paras, testutil.Words("t", 7)+".")
	}
	path := writeArchive(t, dir, "PMC5", testutil.Article{
		PMCID:      "PMC5555",
		Abstract:   []string{"Short abstract about myelin."},
		Paragraphs: paras,
	})
	a := newTestAssembler(t, 10, 2)
	recs := slices.Collect(a.File(path))
	if len(recs) < 3 {
		t.Fatalf("expected several windows, got %d", len(recs))
	}
	seen := map[string]bool{}
	for i, r := range recs {
		want := "abstract"
		if i > 0 {
			want = models.SectionBodyPrefix + strconv.Itoa(i)
		}
		if r.Section != want {
			t.Errorf("record %d section = %s, want %s", i, r.Section, want)
		}
		if r.Index != i {
			t.Errorf("record %d index = %d", i, r.Index)
		}
		if r.ChunkID != chunkid.ChunkID("PMC5.tar.gz", i) {
			t.Errorf("record %d chunk id should derive from the filename", i)
		}
		if seen[r.ChunkID] {
			t.Errorf("duplicate chunk id %s", r.ChunkID)
		}
		seen[r.ChunkID] = true
		if r.PMCID != "PMC5555" {
			t.Errorf("pmc_id = %s", r.PMCID)
		}
	}
	if recs[0].ClusterTag == nil || *recs[0].ClusterTag != "Neurological" {
		t.Errorf("first window should be tagged Neurological, got %v", recs[0].ClusterTag)
	}
	if recs[len(recs)-1].ClusterTag != nil {
		t.Errorf("last window has no keywords, got %v", *recs[len(recs)-1].ClusterTag)
	}
}

func TestFile_idempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "PMC9", testutil.Article{DOI: "10.9/z", Paragraphs: []string{testutil.Words("a", 50) + "."}})
	a := newTestAssembler(t, 16, 4)
	first := slices.Collect(a.File(path))
	second := slices.Collect(a.File(path))
	if len(first) != len(second) {
		t.Fatalf("record counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ChunkID != second[i].ChunkID || first[i].Text != second[i].Text {
			t.Errorf("record %d differs between runs", i)
		}
	}
}

func TestFile_sameDOIDifferentIndexes(t *testing.T) {
	dir := t.TempDir()
	art := testutil.Article{DOI: "10.1/dup", Paragraphs: []string{"one two three."}}
	p1 := writeArchive(t, dir, "A", art)
	p2 := writeArchive(t, dir, "B", art)
	a := newTestAssembler(t, 256, 32)
	recs := slices.Collect(a.Batch([]string{p1, p2}))
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].ChunkID != recs[1].ChunkID {
		t.Error("without widening, equal DOI and index give equal ids")
	}

	wide := newTestAssembler(t, 256, 32, WithWidenedKeys(true))
	recs = slices.Collect(wide.Batch([]string{p1, p2}))
	if recs[0].ChunkID == recs[1].ChunkID {
		t.Error("widened keys should separate sources")
	}
}

func TestFile_plainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("Patient has lupus.\n\nFollow up in \x80 weeks."), 0644); err != nil {
		t.Fatal(err)
	}
	a := newTestAssembler(t, 256, 32)
	recs := slices.Collect(a.File(path))
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	r := recs[0]
	if r.DOI != nil || r.Journal != nil || r.Year != nil {
		t.Errorf("plain text has no metadata: %+v", r)
	}
	if r.PMCID != "notes" {
		t.Errorf("pmc_id = %q", r.PMCID)
	}
	if r.ChunkID != chunkid.ChunkID("notes.txt", 0) {
		t.Errorf("chunk id should use the filename")
	}
	if !strings.Contains(r.Text, "�") {
		t.Errorf("invalid bytes should be replaced: %q", r.Text)
	}
}

func TestFile_skipsAndLogs(t *testing.T) {
	dir := t.TempDir()
	noMarkup := filepath.Join(dir, "empty.tar.gz")
	data, err := testutil.TarGz(testutil.Member{Name: "readme.txt", Body: []byte("hi")})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(noMarkup, data, 0644); err != nil {
		t.Fatal(err)
	}
	malformed := filepath.Join(dir, "bad.tar.gz")
	data, err = testutil.TarGz(testutil.Member{Name: "bad.nxml", Body: []byte("<article><body>")})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(malformed, data, 0644); err != nil {
		t.Fatal(err)
	}
	emptyText := writeArchive(t, dir, "notext", testutil.Article{DOI: "10.1/empty"})
	missing := filepath.Join(dir, "missing.tar.gz")
	good := writeArchive(t, dir, "good", testutil.Article{Paragraphs: []string{"fine."}})

	core, logs := observer.New(zap.WarnLevel)
	a := newTestAssembler(t, 256, 32, WithLogger(zap.New(core)))
	recs := slices.Collect(a.Batch([]string{noMarkup, malformed, emptyText, missing, good}))
	if len(recs) != 1 || recs[0].Text != "fine." {
		t.Fatalf("only the good file should produce chunks, got %d", len(recs))
	}
	if n := logs.FilterMessage("archive has no article markup, skipping").Len(); n != 1 {
		t.Errorf("no-markup warnings = %d", n)
	}
	if n := logs.FilterMessage("malformed article markup, skipping").Len(); n != 1 {
		t.Errorf("malformed warnings = %d", n)
	}
	if n := logs.FilterMessage("cannot read input, skipping").Len(); n != 1 {
		t.Errorf("unreadable warnings = %d", n)
	}
	if logs.Len() != 3 {
		t.Errorf("empty text should be skipped silently; got %d warnings", logs.Len())
	}
}

func TestBatch_earlyStop(t *testing.T) {
	dir := t.TempDir()
	p1 := writeArchive(t, dir, "a", testutil.Article{Paragraphs: []string{"one."}})
	p2 := writeArchive(t, dir, "b", testutil.Article{Paragraphs: []string{"two."}})
	a := newTestAssembler(t, 256, 32)
	var got []string
	for rec := range a.Batch([]string{p1, p2}) {
		got = append(got, rec.Text)
		break
	}
	if len(got) != 1 || got[0] != "one." {
		t.Errorf("got %q", got)
	}
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeArchive(t, sub, "b", testutil.Article{Paragraphs: []string{"second."}})
	writeArchive(t, dir, "a", testutil.Article{Paragraphs: []string{"first."}})
	if err := os.WriteFile(filepath.Join(dir, "c.TXT"), []byte("third."), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.pdf"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	a := newTestAssembler(t, 256, 32)
	seq, err := a.Directory(dir)
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for rec := range seq {
		texts = append(texts, rec.Text)
	}
	want := []string{"first.", "third.", "second."}
	if !slices.Equal(texts, want) {
		t.Errorf("texts = %q, want %q", texts, want)
	}
}

func TestDiscover_notADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Discover(f); err == nil {
		t.Error("expected error for a file path")
	}
}

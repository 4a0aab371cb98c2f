package article

import (
	"errors"
	"strings"
	"testing"
)

const sampleArticle = `<?xml version="1.0" encoding="UTF-8"?>
<article xmlns:xlink="http://www.w3.org/1999/xlink" article-type="research-article">
  <front>
    <journal-meta>
      <journal-title-group><journal-title>Arthritis Research</journal-title></journal-title-group>
    </journal-meta>
    <article-meta>
      <article-id pub-id-type="pmid">111</article-id>
      <article-id pub-id-type="pmc">PMC4242</article-id>
      <article-id pub-id-type="doi">10.1/x</article-id>
      <article-id pub-id-type="doi">10.2/ignored</article-id>
      <title-group><article-title>Lupus <italic>in</italic> context</article-title></title-group>
      <pub-date><year> 2019 </year></pub-date>
      <abstract>
        <sec><title>Background</title><p>First <b>bold</b> claim.</p></sec>
        <p>  </p>
      </abstract>
    </article-meta>
  </front>
  <body>
    <sec>
      <title>Intro</title>
      <p>Hello lupus world.</p>
      <p>Second para with <xref ref-type="bibr">[1]</xref> cite.</p>
    </sec>
    <fig><caption><p>Figure text.</p></caption></fig>
  </body>
  <back><ref-list><ref><year>1999</year></ref></ref-list></back>
</article>`

func TestParse_fullArticle(t *testing.T) {
	rec, err := Parse([]byte(sampleArticle))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.DOI == nil || *rec.DOI != "10.1/x" {
		t.Errorf("doi = %v, want 10.1/x (first wins)", rec.DOI)
	}
	if rec.PMCID == nil || *rec.PMCID != "PMC4242" {
		t.Errorf("pmc = %v", rec.PMCID)
	}
	if rec.Journal == nil || *rec.Journal != "Arthritis Research" {
		t.Errorf("journal = %v", rec.Journal)
	}
	if rec.Title == nil || *rec.Title != "Lupus in context" {
		t.Errorf("title = %v", rec.Title)
	}
	if rec.Year == nil || *rec.Year != 2019 {
		t.Errorf("year = %v, want 2019", rec.Year)
	}
	if rec.Abstract != "Background First bold claim." {
		t.Errorf("abstract = %q", rec.Abstract)
	}
	wantBody := "Intro Hello lupus world. Second para with [1] cite. Figure text."
	if rec.Body != wantBody {
		t.Errorf("body = %q, want %q", rec.Body, wantBody)
	}
}

func TestParse_namespacePrefixes(t *testing.T) {
	doc := `<j:article xmlns:j="http://jats.nlm.nih.gov">
  <j:front><j:article-meta><j:article-id pub-id-type="doi">10.9/ns</j:article-id></j:article-meta></j:front>
  <j:body><j:p>Prefixed paragraph.</j:p></j:body>
</j:article>`
	rec, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.DOI == nil || *rec.DOI != "10.9/ns" {
		t.Errorf("doi = %v", rec.DOI)
	}
	if rec.Body != "Prefixed paragraph." {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestParse_defaultNamespace(t *testing.T) {
	doc := `<article xmlns="http://example.org/jats"><body><p>Plain.</p></body></article>`
	rec, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Body != "Plain." {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestParse_missingFieldsAreNil(t *testing.T) {
	doc := `<article><front><article-meta>
  <article-id pub-id-type="doi">   </article-id>
  <pub-date><year>n/a</year></pub-date>
</article-meta></front></article>`
	rec, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if rec.DOI != nil {
		t.Errorf("blank doi should be absent, got %q", *rec.DOI)
	}
	if rec.PMCID != nil || rec.Journal != nil || rec.Title != nil {
		t.Errorf("expected nil optionals, got %+v", rec)
	}
	if rec.Year != nil {
		t.Errorf("unparseable year should be nil, got %d", *rec.Year)
	}
	if rec.Abstract != "" || rec.Body != "" {
		t.Errorf("expected empty text, got abstract=%q body=%q", rec.Abstract, rec.Body)
	}
}

func TestParse_htmlEntities(t *testing.T) {
	doc := `<article><body><p>alpha&nbsp;beta &amp; gamma</p></body></article>`
	rec, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body, "beta & gamma") {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestParse_declaredCharset(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><article><body><p>Sj\xf6gren</p></body></article>"
	rec, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Body != "Sjögren" {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestParse_malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unclosed", "<article><body><p>oops</body></article>"},
		{"truncated", "<article><body>"},
		{"empty", ""},
		{"junk after root", "<a></a>trailing"},
		{"two roots", "<a></a><b></b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestNode_fragmentsAndInnerText(t *testing.T) {
	root, err := parseTree([]byte(`<a>x<b>y<c>z</c>w</b>v</a>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := root.innerText(); got != "xyzwv" {
		t.Errorf("innerText = %q", got)
	}
	if got := strings.Join(root.fragments(), "|"); got != "x|y|z|w|v" {
		t.Errorf("fragments = %q", got)
	}
	b := root.find("b")
	if b == nil || b.tail != "v" {
		t.Fatalf("b.tail = %v", b)
	}
	if got := b.innerText(); got != "yzw" {
		t.Errorf("b.innerText = %q (tail must be excluded)", got)
	}
}

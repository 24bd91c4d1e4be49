package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/url"
	"os/exec"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
)

func newTestExtractor(cfg Config) *Extractor {
	return New(cfg, zap.NewNop())
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestHTML_PrefersMain(t *testing.T) {
	body := []byte(`<html><head><title>T</title><script>var x = 1;</script></head>
<body><nav>Menu   Home</nav><main><h1>Admissions</h1><p>Apply   by
 March 1.</p><style>.a{}</style></main><footer>Imprint</footer></body></html>`)

	page := newTestExtractor(Config{}).HTML(mustURL(t, "https://uni.example/a/"), body)
	if page.Text != "Admissions Apply by March 1." {
		t.Errorf("unexpected text %q", page.Text)
	}
}

func TestHTML_FallsBackToArticleThenBody(t *testing.T) {
	e := newTestExtractor(Config{})
	base := mustURL(t, "https://uni.example/")

	article := e.HTML(base, []byte(`<body><p>outside</p><article>inside</article></body>`))
	if article.Text != "inside" {
		t.Errorf("article: got %q", article.Text)
	}
	body := e.HTML(base, []byte(`<body><p>only body</p></body>`))
	if body.Text != "only body" {
		t.Errorf("body: got %q", body.Text)
	}
}

func TestHTML_ResolvesLinks(t *testing.T) {
	body := []byte(`<body>
<a href="/programs#top">Programs</a>
<a href="fees.html">Fees</a>
<a href="https://other.example/x">Other</a>
<a href="mailto:office@uni.example">Mail</a>
<a>no href</a>
</body>`)

	page := newTestExtractor(Config{}).HTML(mustURL(t, "https://uni.example/study/"), body)
	want := []string{
		"https://uni.example/programs#top",
		"https://uni.example/study/fees.html",
		"https://other.example/x",
	}
	if len(page.Links) != len(want) {
		t.Fatalf("expected %d links, got %v", len(want), page.Links)
	}
	for i, w := range want {
		if page.Links[i].String() != w {
			t.Errorf("link %d: got %q, want %q", i, page.Links[i], w)
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		contentType string
		body        []byte
		want        Kind
	}{
		{"pdf extension", "Guide.PDF", "", nil, KindPDF},
		{"docx extension", "a.docx", "", nil, KindDOCX},
		{"markdown", "notes.md", "", nil, KindMarkdown},
		{"content type", "download", "text/html; charset=utf-8", nil, KindHTML},
		{"pdf magic", "blob", "application/octet-stream", []byte("%PDF-1.7"), KindPDF},
		{"zip magic", "blob", "", []byte("PK\x03\x04rest"), KindDOCX},
		{"unknown", "image.png", "image/png", []byte{0x89, 'P', 'N', 'G'}, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.file, tt.contentType, tt.body); got != tt.want {
				t.Errorf("Detect()=%q, want %q", got, tt.want)
			}
		})
	}
}

func TestLooksLikeDocument(t *testing.T) {
	tests := map[string]bool{
		"https://uni.example/files/guide.pdf":     true,
		"https://uni.example/files/guide.PDF":     true,
		"https://uni.example/files/guide.pdf?v=2": true,
		"https://uni.example/files/form.docx":     true,
		"https://uni.example/programs":            false,
		"https://uni.example/pdfs/overview":       false,
	}
	for raw, want := range tests {
		if got := LooksLikeDocument(mustURL(t, raw)); got != want {
			t.Errorf("LooksLikeDocument(%q)=%v, want %v", raw, got, want)
		}
	}
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestDOCX(t *testing.T) {
	doc := buildDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Module</w:t></w:r><w:r><w:t xml:space="preserve"> handbook</w:t></w:r></w:p>
<w:p><w:r><w:t>30 ECTS</w:t><w:tab/><w:t>thesis</w:t></w:r></w:p>
<w:p></w:p>
</w:body>
</w:document>`)

	got, err := newTestExtractor(Config{}).Extract(context.Background(), "handbook.docx", "", doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Module handbook\n30 ECTS\tthesis" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestDOCX_Corrupt(t *testing.T) {
	_, err := newTestExtractor(Config{}).Extract(context.Background(), "broken.docx", "", []byte("not a zip"))
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtract_PlainText(t *testing.T) {
	got, err := newTestExtractor(Config{}).Extract(context.Background(), "notes.txt", "", []byte("  hello\xffworld \n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello�world" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := newTestExtractor(Config{}).Extract(context.Background(), "photo.png", "image/png", []byte{0x89})
	if !errors.Is(err, domain.ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
}

func TestExtract_TooLarge(t *testing.T) {
	e := newTestExtractor(Config{MaxDocumentBytes: 4})
	_, err := e.Extract(context.Background(), "notes.txt", "", []byte("hello"))
	if !errors.Is(err, domain.ErrDocumentTooLarge) {
		t.Fatalf("expected ErrDocumentTooLarge, got %v", err)
	}
}

func TestPDF_MissingTool(t *testing.T) {
	e := newTestExtractor(Config{PDFToText: "/nonexistent/pdftotext"})
	_, err := e.PDF(context.Background(), []byte("%PDF-1.4"))
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestPDF_Invalid(t *testing.T) {
	if _, err := exec.LookPath(DefaultPDFToText); err != nil {
		t.Skip("pdftotext not installed")
	}
	_, err := newTestExtractor(Config{}).PDF(context.Background(), []byte("%PDF-garbage"))
	if err == nil {
		t.Fatal("expected error for invalid pdf")
	}
	if !strings.Contains(err.Error(), "pdftotext") {
		t.Errorf("unexpected error %v", err)
	}
}

package normalize

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/docent-ai/docent/engine/domain"
)

func txtDoc(text string) domain.Document {
	return domain.Document{ID: "doc-1", Name: "notes.txt", Format: domain.FormatTXT, Data: []byte(text)}
}

func TestNormalize_EmptyDocument(t *testing.T) {
	n := New()
	_, err := n.Normalize(domain.Document{ID: "d", Name: "empty.txt", Format: domain.FormatTXT})
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	n := New()
	_, err := n.Normalize(domain.Document{ID: "d", Name: "pic.png", Format: "png", Data: []byte{1}})
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalize_WhitespaceOnlyText(t *testing.T) {
	n := New()
	_, err := n.Normalize(txtDoc("  \n\n \t \n"))
	if !errors.Is(err, domain.ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestNormalizeTXT_Paragraphs(t *testing.T) {
	text := "First paragraph line one.\nStill the first paragraph.\n\nSecond paragraph.\n\n\nThird paragraph."
	n := New()
	out, err := n.Normalize(txtDoc(text))
	if err != nil {
		t.Fatal(err)
	}
	want := "First paragraph line one. Still the first paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	if out.Text != want {
		t.Errorf("text:\n%q\nwant:\n%q", out.Text, want)
	}
	if len(out.Anchors) != 3 {
		t.Fatalf("expected 3 anchors, got %d", len(out.Anchors))
	}
	for i, a := range out.Anchors {
		if a.Anchor.Paragraph != i {
			t.Errorf("anchor %d: paragraph %d", i, a.Anchor.Paragraph)
		}
		if a.Anchor.Page != 0 {
			t.Errorf("anchor %d: txt should have no page, got %d", i, a.Anchor.Page)
		}
	}
	// Second paragraph anchor points at its first rune.
	second := out.Anchors[1]
	if !strings.HasPrefix(out.Text[second.Offset:], "Second paragraph.") {
		t.Errorf("anchor 1 offset %d does not point at second paragraph", second.Offset)
	}
}

func TestNormalizeTXT_CRLF(t *testing.T) {
	n := New()
	out, err := n.Normalize(txtDoc("one\r\n\r\ntwo"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "one\n\ntwo" {
		t.Errorf("got %q", out.Text)
	}
}

func TestNormalizePDF_Garbage(t *testing.T) {
	n := New()
	doc := domain.Document{ID: "d", Name: "bad.pdf", Format: domain.FormatPDF, Data: []byte("not a pdf at all")}
	_, err := n.Normalize(doc)
	if !errors.Is(err, domain.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

// buildDocx assembles a minimal OOXML package with the given paragraphs.
func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		doc.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	doc.WriteString(`</w:body></w:document>`)
	if _, err := w.Write([]byte(doc.String())); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNormalizeDOCX(t *testing.T) {
	data := buildDocx(t, "Introduction to the study.", "Methods were rigorous.", "Results were significant.")
	n := New()
	out, err := n.Normalize(domain.Document{ID: "d", Name: "paper.docx", Format: domain.FormatDOCX, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	want := "Introduction to the study.\n\nMethods were rigorous.\n\nResults were significant."
	if out.Text != want {
		t.Errorf("text:\n%q\nwant:\n%q", out.Text, want)
	}
	if len(out.Anchors) != 3 {
		t.Errorf("expected 3 anchors, got %d", len(out.Anchors))
	}
}

func TestNormalizeDOCX_NotAZip(t *testing.T) {
	n := New()
	doc := domain.Document{ID: "d", Name: "bad.docx", Format: domain.FormatDOCX, Data: []byte("plain text")}
	_, err := n.Normalize(doc)
	if !errors.Is(err, domain.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestNormalizeDOCX_MissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/other.xml")
	w.Write([]byte("<x/>"))
	zw.Close()

	n := New()
	doc := domain.Document{ID: "d", Name: "odd.docx", Format: domain.FormatDOCX, Data: buf.Bytes()}
	_, err := n.Normalize(doc)
	if !errors.Is(err, domain.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestNormalizeDOCX_EmptyParagraphsSkipped(t *testing.T) {
	data := buildDocx(t, "Only content.", "", "   ")
	n := New()
	out, err := n.Normalize(domain.Document{ID: "d", Name: "sparse.docx", Format: domain.FormatDOCX, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "Only content." {
		t.Errorf("got %q", out.Text)
	}
	if len(out.Anchors) != 1 {
		t.Errorf("expected 1 anchor, got %d", len(out.Anchors))
	}
}

func TestSplitParagraphs(t *testing.T) {
	got := splitParagraphs("alpha line\n\nbeta   line\n\n")
	if len(got) != 2 || got[0] != "alpha line" || got[1] != "beta line" {
		t.Errorf("got %v", got)
	}
	// No blank-line structure: fall back to single lines.
	got = splitParagraphs("one\ntwo\nthree")
	if len(got) != 3 {
		t.Errorf("fallback split got %v", got)
	}
}

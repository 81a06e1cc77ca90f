// Package normalize converts heterogeneous document formats into plain text
// while preserving the page and paragraph boundaries later used for
// citations. Normalization is a pure transform: raw bytes in, normalized
// text or a typed input failure out.
package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/docent-ai/docent/engine/domain"
)

// Normalizer converts raw documents into domain.NormalizedText.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer { return &Normalizer{} }

// Normalize dispatches on the declared format. A document that yields no
// extractable text (an image-only PDF, say) fails with domain.ErrNoText
// rather than silently producing an empty result.
func (n *Normalizer) Normalize(doc domain.Document) (domain.NormalizedText, error) {
	if len(doc.Data) == 0 {
		return domain.NormalizedText{}, domain.NewInputError(doc.ID, doc.Name, domain.ErrEmptyDocument)
	}

	var (
		out domain.NormalizedText
		err error
	)
	switch doc.Format {
	case domain.FormatPDF:
		out, err = normalizePDF(doc)
	case domain.FormatDOCX:
		out, err = normalizeDOCX(doc)
	case domain.FormatTXT:
		out, err = normalizeTXT(doc)
	default:
		return domain.NormalizedText{}, domain.NewInputError(doc.ID, doc.Name, domain.ErrUnsupportedFormat)
	}
	if err != nil {
		return domain.NormalizedText{}, err
	}
	if strings.TrimSpace(out.Text) == "" {
		return domain.NormalizedText{}, domain.NewInputError(doc.ID, doc.Name, domain.ErrNoText)
	}
	return out, nil
}

// builder accumulates normalized text and anchors, tracking the rune offset
// that chunk boundaries and anchors are expressed in.
type builder struct {
	text    strings.Builder
	anchors []domain.TextAnchor
	runes   int
	para    int
}

// paragraph appends one paragraph of text, recording an anchor at its start.
func (b *builder) paragraph(text string, page int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if b.runes > 0 {
		b.text.WriteString("\n\n")
		b.runes += 2
	}
	b.anchors = append(b.anchors, domain.TextAnchor{
		Offset: b.runes,
		Anchor: domain.Anchor{Page: page, Paragraph: b.para},
	})
	b.text.WriteString(text)
	b.runes += utf8.RuneCountInString(text)
	b.para++
}

func (b *builder) build(doc domain.Document) domain.NormalizedText {
	return domain.NormalizedText{
		DocID:   doc.ID,
		Source:  doc.Name,
		Text:    b.text.String(),
		Anchors: b.anchors,
	}
}

// normalizeTXT treats line-groups separated by blank lines as paragraphs.
func normalizeTXT(doc domain.Document) (domain.NormalizedText, error) {
	text := strings.ReplaceAll(string(doc.Data), "\r\n", "\n")

	var b builder
	for _, block := range strings.Split(text, "\n\n") {
		// Collapse single newlines inside a paragraph.
		b.paragraph(strings.Join(strings.Fields(block), " "), 0)
	}
	return b.build(doc), nil
}

package normalize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docent-ai/docent/engine/domain"
)

// normalizePDF extracts text page by page so every paragraph anchor carries
// its page number. Pages that fail text extraction are skipped; the document
// as a whole only fails when no page yields text.
func normalizePDF(doc domain.Document) (out domain.NormalizedText, err error) {
	// The pdf package panics on some malformed inputs; fold those into the
	// unreadable-document error instead of crashing the pipeline.
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewInputError(doc.ID, doc.Name, fmt.Errorf("%w: %v", domain.ErrUnreadable, r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return domain.NormalizedText{}, domain.NewInputError(doc.ID, doc.Name, fmt.Errorf("%w: %v", domain.ErrUnreadable, err))
	}

	var b builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, para := range splitParagraphs(text) {
			b.paragraph(para, i)
		}
	}
	return b.build(doc), nil
}

// splitParagraphs breaks extracted page text on blank lines, falling back to
// single lines when the extractor produced no blank-line structure.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	blocks := strings.Split(text, "\n\n")
	if len(blocks) == 1 {
		blocks = strings.Split(text, "\n")
	}
	var out []string
	for _, block := range blocks {
		if p := strings.Join(strings.Fields(block), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package normalize

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/docent-ai/docent/engine/domain"
)

// normalizeDOCX reads the OOXML main document part and emits one paragraph
// per <w:p> element. DOCX has no page notion at rest, so anchors carry
// paragraph indexes only.
func normalizeDOCX(doc domain.Document) (domain.NormalizedText, error) {
	zr, err := zip.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return domain.NormalizedText{}, domain.NewInputError(doc.ID, doc.Name, fmt.Errorf("%w: %v", domain.ErrUnreadable, err))
	}

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body, err = f.Open()
			break
		}
	}
	if body == nil || err != nil {
		return domain.NormalizedText{}, domain.NewInputError(doc.ID, doc.Name, fmt.Errorf("%w: missing word/document.xml", domain.ErrUnreadable))
	}
	defer body.Close()

	paragraphs, err := extractParagraphs(body)
	if err != nil {
		return domain.NormalizedText{}, domain.NewInputError(doc.ID, doc.Name, fmt.Errorf("%w: %v", domain.ErrUnreadable, err))
	}

	var b builder
	for _, p := range paragraphs {
		b.paragraph(p, 0)
	}
	return b.build(doc), nil
}

// extractParagraphs walks the WordprocessingML token stream collecting the
// text runs of each paragraph. Tabs and breaks become spaces; everything
// else outside <w:t> is ignored.
func extractParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
		inPara     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				current.Reset()
			case "t":
				inText = inPara
			case "tab", "br":
				if inPara {
					current.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				paragraphs = append(paragraphs, current.String())
				inPara = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}

// Package domain defines the core data model and error taxonomy for the
// docent engine. It acts as the shared vocabulary between the indexing
// pipeline and the query-time services.
package domain

// Format identifies a supported document input format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

// ValidFormats is the set of formats the normalizer accepts.
var ValidFormats = map[Format]bool{
	FormatPDF: true, FormatDOCX: true, FormatTXT: true,
}

// FormatFromFilename guesses the format from a filename extension.
// Returns false if the extension is not recognised.
func FormatFromFilename(name string) (Format, bool) {
	for f := range ValidFormats {
		suffix := "." + string(f)
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			return f, true
		}
	}
	return "", false
}

// Document is a raw uploaded document. It exists only until normalization;
// nothing downstream holds on to the raw bytes.
type Document struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Format Format `json:"format"`
	Data   []byte `json:"data"`
}

// Anchor locates a position in a document for citation purposes.
// Page is 1-based and zero for formats without pages; Paragraph is a 0-based
// paragraph index within the document.
type Anchor struct {
	Page      int `json:"page"`
	Paragraph int `json:"paragraph"`
}

// NormalizedText is a document reduced to plain text plus the structural
// anchors needed to cite back into it. Anchors are ordered by Offset.
type NormalizedText struct {
	DocID   string       `json:"doc_id"`
	Source  string       `json:"source"` // original filename
	Text    string       `json:"text"`
	Anchors []TextAnchor `json:"anchors"`
}

// TextAnchor ties an Anchor to a byte offset in NormalizedText.Text.
type TextAnchor struct {
	Offset int    `json:"offset"`
	Anchor Anchor `json:"anchor"`
}

// AnchorAt returns the last anchor at or before the given byte offset.
// The zero Anchor is returned for texts without anchors.
func (n NormalizedText) AnchorAt(offset int) Anchor {
	var a Anchor
	for _, ta := range n.Anchors {
		if ta.Offset > offset {
			break
		}
		a = ta.Anchor
	}
	return a
}

// Chunk is a bounded, overlap-consistent slice of normalized text, the unit
// of embedding and retrieval. Start/End are byte offsets into the source
// NormalizedText; Sequence is the 0-based chunk index within the document.
type Chunk struct {
	DocID       string `json:"doc_id"`
	Source      string `json:"source"`
	Sequence    int    `json:"sequence"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Text        string `json:"text"`
	StartAnchor Anchor `json:"start_anchor"`
	EndAnchor   Anchor `json:"end_anchor"`
}

// Scored is a retrieved chunk with its similarity score.
type Scored struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// RetrievalResult is the ranked evidence set for a query, descending by
// score. Empty is a valid, meaningful outcome, not an error.
type RetrievalResult struct {
	Query  string   `json:"query"`
	Hits   []Scored `json:"hits"`
}

// Empty reports whether no evidence cleared the similarity threshold.
func (r RetrievalResult) Empty() bool { return len(r.Hits) == 0 }

// Citation points at the evidence chunk that supports a claim.
type Citation struct {
	DocID    string `json:"doc_id"`
	Source   string `json:"source"`
	Sequence int    `json:"sequence"`
	Anchor   Anchor `json:"anchor"`
	Snippet  string `json:"snippet,omitempty"`
}

// Answer is a grounded answer to a user question. Found is false when the
// indexed documents contain nothing relevant; such answers carry zero
// citations and a fixed refusal text rather than free generation.
type Answer struct {
	Text      string     `json:"text"`
	Found     bool       `json:"found"`
	Citations []Citation `json:"citations"`
	Sources   []string   `json:"sources"`
}

// Difficulty tags a challenge question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ChallengeQuestion is a comprehension probe generated from indexed content,
// together with the evidence it was generated from.
type ChallengeQuestion struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Difficulty Difficulty `json:"difficulty"`
	Evidence   []Chunk    `json:"evidence"`
}

// Verdict is the outcome of judging a user answer.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictPartial   Verdict = "partial"
	VerdictIncorrect Verdict = "incorrect"
)

// Evaluation judges a user's answer to a ChallengeQuestion against the
// question's re-retrieved evidence.
type Evaluation struct {
	Question      string     `json:"question"`
	UserAnswer    string     `json:"user_answer"`
	Verdict       Verdict    `json:"verdict"`
	Score         int        `json:"score"` // 0-100
	Feedback      string     `json:"feedback"`
	Justification string     `json:"justification"`
	Citations     []Citation `json:"citations"`
}

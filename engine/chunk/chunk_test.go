package chunk

import (
	"errors"
	"strings"
	"testing"

	"github.com/docent-ai/docent/engine/domain"
)

func testConfig(size, overlap int) domain.Config {
	cfg := domain.DefaultConfig()
	cfg.ChunkSize = size
	cfg.ChunkOverlap = overlap
	return cfg
}

func normalized(text string) domain.NormalizedText {
	return domain.NormalizedText{DocID: "doc-1", Source: "paper.txt", Text: text}
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			cfg.ChunkSize = tc.size
			cfg.ChunkOverlap = tc.overlap
			if _, err := New(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestSplit_1200CharDocument(t *testing.T) {
	// 1200 chars at 500/100 must produce exactly [0:500], [400:900], [800:1200].
	text := strings.Repeat("abcdef", 200)
	c, err := New(testConfig(500, 100))
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := c.Split(normalized(text))
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{0, 500}, {400, 900}, {800, 1200}}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, w := range want {
		if chunks[i].Start != w[0] || chunks[i].End != w[1] {
			t.Errorf("chunk %d: got [%d:%d], want [%d:%d]", i, chunks[i].Start, chunks[i].End, w[0], w[1])
		}
		if chunks[i].Sequence != i {
			t.Errorf("chunk %d: sequence %d", i, chunks[i].Sequence)
		}
		if chunks[i].Text != text[w[0]:w[1]] {
			t.Errorf("chunk %d: text does not match source slice", i)
		}
	}
}

func TestSplit_OverlapConsistency(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)
	c, _ := New(testConfig(500, 100))
	chunks, err := c.Split(normalized(text))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		overlap := prev.End - cur.Start
		if overlap != 100 {
			t.Fatalf("chunks %d/%d: overlap %d, want 100", i-1, i, overlap)
		}
		tail := prev.Text[len(prev.Text)-overlap:]
		head := cur.Text[:overlap]
		if tail != head {
			t.Errorf("chunks %d/%d: overlap region differs", i-1, i)
		}
	}
}

func TestSplit_Reconstruction(t *testing.T) {
	// Concatenating chunks minus the declared overlap reconstructs the text.
	texts := []string{
		strings.Repeat("x", 1200),
		strings.Repeat("word boundary test. ", 61), // 1220 chars, trailing remainder
		"short",
	}
	c, _ := New(testConfig(500, 100))
	for _, text := range texts {
		chunks, err := c.Split(normalized(text))
		if err != nil {
			t.Fatal(err)
		}
		var b strings.Builder
		for i, ch := range chunks {
			if i == 0 {
				b.WriteString(ch.Text)
				continue
			}
			b.WriteString(ch.Text[chunks[i-1].End-ch.Start:])
		}
		if b.String() != text {
			t.Errorf("len %d: reconstruction mismatch", len(text))
		}
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c, _ := New(testConfig(500, 100))
	chunks, err := c.Split(normalized("a short document"))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "a short document" {
		t.Errorf("chunk text mismatch: %q", chunks[0].Text)
	}
}

func TestSplit_TrailingRemainderKept(t *testing.T) {
	text := strings.Repeat("y", 950) // [0:500], [400:900], [800:950]
	c, _ := New(testConfig(500, 100))
	chunks, err := c.Split(normalized(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	last := chunks[2]
	if last.Start != 800 || last.End != 950 {
		t.Errorf("last chunk [%d:%d], want [800:950]", last.Start, last.End)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	c, _ := New(testConfig(500, 100))
	for _, text := range []string{"", "   \n\t  "} {
		_, err := c.Split(normalized(text))
		if !errors.Is(err, domain.ErrEmptyInput) {
			t.Errorf("text %q: expected ErrEmptyInput, got %v", text, err)
		}
		var ie *domain.InputError
		if !errors.As(err, &ie) {
			t.Errorf("text %q: expected *InputError, got %T", text, err)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("determinism matters for idempotent indexing. ", 30)
	c, _ := New(testConfig(500, 100))
	a, _ := c.Split(normalized(text))
	b, _ := c.Split(normalized(text))
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplit_AnchorsAssigned(t *testing.T) {
	text := strings.Repeat("z", 1200)
	n := domain.NormalizedText{
		DocID:  "doc-1",
		Source: "paper.pdf",
		Text:   text,
		Anchors: []domain.TextAnchor{
			{Offset: 0, Anchor: domain.Anchor{Page: 1, Paragraph: 0}},
			{Offset: 600, Anchor: domain.Anchor{Page: 2, Paragraph: 4}},
		},
	}
	c, _ := New(testConfig(500, 100))
	chunks, err := c.Split(n)
	if err != nil {
		t.Fatal(err)
	}
	if chunks[0].StartAnchor.Page != 1 || chunks[0].EndAnchor.Page != 1 {
		t.Errorf("chunk 0 anchors: %+v / %+v", chunks[0].StartAnchor, chunks[0].EndAnchor)
	}
	// [400:900] straddles the page break at 600.
	if chunks[1].StartAnchor.Page != 1 || chunks[1].EndAnchor.Page != 2 {
		t.Errorf("chunk 1 anchors: %+v / %+v", chunks[1].StartAnchor, chunks[1].EndAnchor)
	}
	if chunks[2].StartAnchor.Page != 2 {
		t.Errorf("chunk 2 start anchor: %+v", chunks[2].StartAnchor)
	}
}

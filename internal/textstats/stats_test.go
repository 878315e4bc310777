package textstats

import (
	"strings"
	"testing"

	"github.com/csheth/chapterdesk/internal/blocks"
)

func TestForBlocksCountsVisibleProse(t *testing.T) {
	list := []blocks.Block{
		blocks.Paragraph{ID: "p1", Text: "The tide came in. Nobody moved."},
		blocks.Dialogue{ID: "d1", Turns: []blocks.Turn{{SpeakerName: "Mara", Utterance: "Is it time?"}}},
		blocks.Metadata{ID: "e1", Kind: blocks.KindEditorial, Note: "these words do not count"},
		blocks.SceneBoundary{ID: "s1", Label: "Later"},
	}
	stats := ForBlocks(list)
	if stats.Blocks != 3 {
		t.Fatalf("expected 3 visible blocks, got %d", stats.Blocks)
	}
	if stats.Words != 9 {
		t.Fatalf("expected 9 words, got %d", stats.Words)
	}
	if stats.Sentences != 3 {
		t.Fatalf("expected 3 sentences, got %d", stats.Sentences)
	}
}

func TestStatsStringUsesThousandsSeparators(t *testing.T) {
	got := Stats{Words: 12345, Sentences: 1001}.String()
	if !strings.Contains(got, "12,345 words") || !strings.Contains(got, "1,001 sentences") {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestSplitHandlesAbbreviations(t *testing.T) {
	parts := Split("Mr. Hale arrived at noon. He was late.")
	if len(parts) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %q", len(parts), parts)
	}
}

func TestEmptyText(t *testing.T) {
	if Sentences("   ") != 0 || Words("") != 0 || Split(" ") != nil {
		t.Fatalf("empty text should count as nothing")
	}
}

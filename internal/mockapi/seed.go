package mockapi

import (
	"encoding/json"

	"github.com/csheth/chapterdesk/internal/blocks"
)

// Seed fills s with a small demo library. It returns the id of the first
// chapter of the first book.
func Seed(s *Store) (string, error) {
	harbor := s.AddBook("The Harbor Keeper", "Ines Calder")
	first, err := s.AddChapter(harbor.ID, "Chapter 1", "Mara returns to the lighthouse.", blocks.List{
		blocks.Metadata{Kind: blocks.KindChapterHeader, Title: "Low Water", Subtitle: "Chapter One", Epigraph: "The sea keeps what it is given."},
		blocks.Metadata{Kind: blocks.KindContext, Context: "Autumn, 1911", NarrativeContext: "Three weeks after the storm."},
		blocks.Paragraph{Text: "The tide had gone out farther than anyone in the village could remember. Boats lay on their sides in the mud like sleeping dogs."},
		blocks.Dialogue{Turns: []blocks.Turn{
			{SpeakerName: "Mara", Utterance: "How long has it been like this?"},
			{SpeakerName: "Tomas", Utterance: "Since Sunday.", StageDirection: "without looking up"},
		}},
		blocks.Metadata{Kind: blocks.KindEditorial, Note: "Tighten the opening image before the second draft."},
		blocks.SceneBoundary{Label: "Night", Summary: "Mara climbs the tower alone."},
		blocks.Paragraph{Text: "The lamp room smelled of oil and salt. She counted the steps on the way down."},
		blocks.Unknown{ID: "illustration-harbor", Type: "illustration", Raw: json.RawMessage(`{"id":"illustration-harbor","type":"illustration","src":"harbor.png","caption":"The harbor at low water"}`)},
	})
	if err != nil {
		return "", err
	}
	if _, err := s.AddChapter(harbor.ID, "Chapter 2", "The keeper's ledger.", blocks.List{
		blocks.Paragraph{Text: "The ledger had been kept in three different hands."},
		blocks.Metadata{Kind: blocks.KindMetadata, Entries: map[string]string{"pov": "Mara", "draft": "2", "location": "lighthouse"}},
	}); err != nil {
		return "", err
	}
	if _, err := s.AddChapter(harbor.ID, "Chapter 10", "", nil); err != nil {
		return "", err
	}

	orchard := s.AddBook("An Orchard in Winter", "Ruth Abernathy")
	if _, err := s.AddChapter(orchard.ID, "Prologue", "Before the frost.", blocks.List{
		blocks.Paragraph{Text: "Nobody planted apples here anymore."},
	}); err != nil {
		return "", err
	}
	s.AddBook("Book 2: Saltwork", "Ines Calder")
	s.AddBook("Book 10: Breakwater", "Ines Calder")
	return first.ID, nil
}

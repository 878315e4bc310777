package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/csheth/chapterdesk/internal/blocks"
)

func buildConvertPrompt(text string) string {
	return `Split the manuscript excerpt below into structured blocks. Keep the author's words exactly; do not summarize, rewrite or add text.
Use these block types:
- paragraph: narrative prose. {"type":"paragraph","text":""}
- dialogue: consecutive spoken lines. {"type":"dialogue","turns":[{"speakerName":"","utterance":"","stageDirection":""}]}
  Leave speakerName empty when the speaker is not named. Put action beats such as "she said quietly" in stageDirection.
- scene_boundary: a break between scenes ("***", "#", a time or place jump). {"type":"scene_boundary","label":"","summary":""}
Return ONLY JSON formatted as {"blocks":[...]} in reading order.

Excerpt:
` + text
}

// parseBlocks extracts the block list from a model answer. Models sometimes
// wrap the JSON in prose or code fences, so the outermost object or array is
// tried as well.
func parseBlocks(raw string) ([]blocks.Block, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty conversion response")
	}
	candidates := []string{raw}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			candidates = append(candidates, raw[start:end+1])
		}
	}
	if start := strings.Index(raw, "["); start >= 0 {
		if end := strings.LastIndex(raw, "]"); end > start {
			candidates = append(candidates, raw[start:end+1])
		}
	}

	for _, candidate := range candidates {
		var wrapper struct {
			Blocks blocks.List `json:"blocks"`
		}
		if err := json.Unmarshal([]byte(candidate), &wrapper); err == nil && len(wrapper.Blocks) > 0 {
			return sanitizeBlocks(wrapper.Blocks)
		}
		var list blocks.List
		if err := json.Unmarshal([]byte(candidate), &list); err == nil && len(list) > 0 {
			return sanitizeBlocks(list)
		}
	}
	return nil, fmt.Errorf("unable to parse conversion payload")
}

// sanitizeBlocks drops blocks the model should not produce and assigns
// positional draft ids.
func sanitizeBlocks(list blocks.List) ([]blocks.Block, error) {
	out := make([]blocks.Block, 0, len(list))
	for _, b := range list {
		var kept blocks.Block
		switch v := b.(type) {
		case blocks.Paragraph:
			v.Text = strings.TrimSpace(v.Text)
			if v.Text == "" {
				continue
			}
			kept = v
		case blocks.Dialogue:
			turns := v.Turns[:0:0]
			for _, turn := range v.Turns {
				turn.SpeakerName = strings.TrimSpace(turn.SpeakerName)
				turn.Utterance = strings.TrimSpace(turn.Utterance)
				turn.StageDirection = strings.TrimSpace(turn.StageDirection)
				if turn.Utterance == "" {
					continue
				}
				turns = append(turns, turn)
			}
			if len(turns) == 0 {
				continue
			}
			v.Turns = turns
			kept = v
		case blocks.SceneBoundary:
			v.Label = strings.TrimSpace(v.Label)
			v.Summary = strings.TrimSpace(v.Summary)
			kept = v
		default:
			continue
		}
		out = append(out, blocks.WithID(kept, fmt.Sprintf("draft-%d", len(out)+1)))
	}
	if len(out) == 0 {
		return nil, ErrNoBlocks
	}
	return out, nil
}

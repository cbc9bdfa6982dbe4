package llm

import (
	"context"
	"encoding/json"
	"strings"

	"audio-notes-go/internal/types"
)

// Mock answers completion requests deterministically so the whole pipeline
// can run without credentials. It recognizes the pipeline's own prompt
// shapes by their schema markers and returns matching JSON; Reply overrides
// everything when set.
type Mock struct {
	Reply func(prompt string) (string, error)
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", types.TransientError(err)
	}
	if m.Reply != nil {
		return m.Reply(req.Prompt)
	}

	switch {
	case strings.Contains(req.Prompt, `"items"`):
		doc := types.NotesDocument{Items: []types.NoteItem{
			{Text: "Ship the beta by the end of next month", Category: "decision"},
			{Text: "Dana drafts the release notes", Category: "action"},
			{Text: "Priya owns the rollout checklist", Category: "action"},
			{Text: "Pricing page still needs a decision", Category: "open_question"},
		}}
		return marshal(doc)
	case strings.Contains(req.Prompt, `"key_points"`):
		return marshal(map[string]any{
			"summary_text": "The team reviewed the quarterly roadmap, committed to a beta release next month and assigned owners for the release notes and rollout. The pricing page decision is still open.",
			"key_points": []string{
				"Beta ships by the end of next month",
				"Dana drafts release notes, Priya owns rollout",
				"Pricing page decision outstanding",
			},
		})
	default:
		return marshal(map[string]any{
			"summary_text": "Roadmap review with a beta commitment, assigned follow-ups and one open pricing question.",
		})
	}
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", types.PermanentError(err)
	}
	return string(data), nil
}

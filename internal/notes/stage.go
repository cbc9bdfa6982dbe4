package notes

import (
	"context"
	"fmt"
	"strings"

	"audio-notes-go/internal/llm"
	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/types"
)

// Known categories, in the order the prompt offers them. Anything else the
// model invents is kept as-is; the list is guidance, not an enum.
const categories = "action, decision, open_question, fact"

// Stage extracts structured notes from a finished summary and its
// transcript. An extraction that finds nothing produces an empty items list;
// only an engine failure fails the stage.
type Stage struct {
	client llm.Client
	log    *logger.Logger
}

func NewStage(client llm.Client, log *logger.Logger) *Stage {
	return &Stage{client: client, log: log}
}

func (s *Stage) Run(ctx context.Context, job types.Job, transcript *types.Transcript, summary *types.Summary) (*types.NotesDocument, error) {
	entry := s.log.WithStage(job.ID, string(types.StageNotes)).WithField("engine", s.client.Name())
	entry.Info("generating notes")

	out, err := s.client.Complete(ctx, llm.Request{
		Prompt:   buildNotesPrompt(summary.SummaryText, transcript.Text),
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate notes: %w", err)
	}

	var doc types.NotesDocument
	if err := llm.DecodeInto(out, &doc); err != nil {
		return nil, types.TransientError(fmt.Errorf("parse notes: %w", err))
	}

	// Normalize: drop blank items, keep the rest verbatim. "Nothing found"
	// is a valid result and must not look like a failure downstream.
	items := make([]types.NoteItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		item.Text = strings.TrimSpace(item.Text)
		item.Category = strings.TrimSpace(item.Category)
		if item.Text == "" {
			continue
		}
		items = append(items, item)
	}
	doc.Items = items

	entry.WithField("items", len(doc.Items)).Info("notes ready")
	return &doc, nil
}

func buildNotesPrompt(summary, transcript string) string {
	prompt := `You are an expert note taker for recorded meetings and voice memos.

Extract the concrete takeaways from the recording below: action items, decisions made, open questions and important facts.

RULES:
- Ground every item in the material. NO outside knowledge.
- One takeaway per item, phrased as a standalone sentence.
- Set "category" to one of: %s. Omit it when none fits.
- If there is genuinely nothing actionable, return an empty "items" array. Do not invent items.
- DO NOT include commentary.
- DO NOT wrap the JSON in backticks.

SCHEMA (STRICT - RETURN ONLY JSON)
{
  "items": [
    {"text": "", "category": ""}
  ]
}

SUMMARY:
%s

TRANSCRIPT:
%s

Return ONLY valid JSON matching the schema.
`
	return fmt.Sprintf(prompt, categories, summary, transcript)
}

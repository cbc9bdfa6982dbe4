package summarizer

import (
	"context"
	"fmt"
	"strings"

	"audio-notes-go/internal/llm"
	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/types"
)

// Stage condenses a transcript into a summary artifact. Transcripts over the
// chunk budget are summarized chunk by chunk, then the chunk summaries are
// merged with a second pass; the merge runs only once every chunk succeeded.
type Stage struct {
	client  llm.Client
	chunker *Chunker
	log     *logger.Logger
}

func NewStage(client llm.Client, chunker *Chunker, log *logger.Logger) *Stage {
	return &Stage{client: client, chunker: chunker, log: log}
}

type chunkResult struct {
	SummaryText string `json:"summary_text"`
}

type finalResult struct {
	SummaryText string   `json:"summary_text"`
	KeyPoints   []string `json:"key_points"`
}

func (s *Stage) Run(ctx context.Context, job types.Job, transcript *types.Transcript) (*types.Summary, error) {
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		return nil, fmt.Errorf("summarize job %s: %w", job.ID, types.ErrEmptyTranscript)
	}

	entry := s.log.WithStage(job.ID, string(types.StageSummary)).WithField("engine", s.client.Name())

	chunks := s.chunker.Split(text)
	entry.WithField("chunks", len(chunks)).Info("summarizing")

	if len(chunks) <= 1 {
		final, err := s.complete(ctx, buildFinalPrompt(text))
		if err != nil {
			return nil, err
		}
		return &types.Summary{
			SummaryText:    final.SummaryText,
			ChunkSummaries: []string{},
			KeyPoints:      final.KeyPoints,
		}, nil
	}

	// Chunks run sequentially; a failure anywhere abandons the stage before
	// the merge, so no partial summary ever reaches disk.
	chunkSummaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, types.TransientError(err)
		}
		res, err := s.completeChunk(ctx, buildChunkPrompt(chunk))
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		chunkSummaries = append(chunkSummaries, res.SummaryText)
	}

	final, err := s.complete(ctx, buildFinalPrompt(strings.Join(chunkSummaries, "\n\n")))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	return &types.Summary{
		SummaryText:    final.SummaryText,
		ChunkSummaries: chunkSummaries,
		KeyPoints:      final.KeyPoints,
	}, nil
}

func (s *Stage) completeChunk(ctx context.Context, prompt string) (chunkResult, error) {
	var res chunkResult
	out, err := s.client.Complete(ctx, llm.Request{Prompt: prompt, JSONMode: true})
	if err != nil {
		return res, err
	}
	if err := llm.DecodeInto(out, &res); err != nil {
		// Malformed model output; another attempt usually comes back clean.
		return res, types.TransientError(fmt.Errorf("parse chunk summary: %w", err))
	}
	if strings.TrimSpace(res.SummaryText) == "" {
		return res, types.TransientError(fmt.Errorf("model returned an empty chunk summary"))
	}
	return res, nil
}

func (s *Stage) complete(ctx context.Context, prompt string) (finalResult, error) {
	var res finalResult
	out, err := s.client.Complete(ctx, llm.Request{Prompt: prompt, JSONMode: true})
	if err != nil {
		return res, err
	}
	if err := llm.DecodeInto(out, &res); err != nil {
		return res, types.TransientError(fmt.Errorf("parse summary: %w", err))
	}
	if strings.TrimSpace(res.SummaryText) == "" {
		return res, types.TransientError(fmt.Errorf("model returned an empty summary"))
	}
	return res, nil
}

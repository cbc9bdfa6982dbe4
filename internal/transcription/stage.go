package transcription

import (
	"context"
	"fmt"
	"os"

	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/storage"
	"audio-notes-go/internal/types"
)

// Stage turns a job's uploaded audio into a transcript. It verifies the
// source before spending an engine call on it: the file must exist, carry a
// supported extension and start with a recognizable container header.
type Stage struct {
	engine Engine
	log    *logger.Logger
}

func NewStage(engine Engine, log *logger.Logger) *Stage {
	return &Stage{engine: engine, log: log}
}

func (s *Stage) Run(ctx context.Context, job types.Job) (*types.Transcript, error) {
	if _, err := os.Stat(job.SourcePath); err != nil {
		return nil, fmt.Errorf("audio source: %w", err)
	}
	if _, err := storage.CheckExtension(job.SourcePath); err != nil {
		return nil, err
	}
	if err := storage.CheckAudioFile(job.SourcePath); err != nil {
		return nil, err
	}

	entry := s.log.WithStage(job.ID, string(types.StageTranscript)).WithField("engine", s.engine.Name())
	entry.Info("transcribing")

	tr, err := s.engine.Transcribe(ctx, Request{AudioPath: job.SourcePath, Language: job.Language})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	entry.WithField("segments", len(tr.Segments)).
		WithField("duration_sec", tr.DurationSeconds).
		Info("transcript ready")
	return tr, nil
}

package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	"audio-notes-go/internal/config"
	"audio-notes-go/internal/jobs"
	"audio-notes-go/internal/llm"
	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/notes"
	"audio-notes-go/internal/pipeline"
	"audio-notes-go/internal/report"
	"audio-notes-go/internal/storage"
	"audio-notes-go/internal/summarizer"
	"audio-notes-go/internal/transcription"
	"audio-notes-go/internal/types"
)

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg      config.Config
	log      *logger.Logger
	store    *storage.Store
	registry *jobs.Registry
	orch     *pipeline.Orchestrator
	reports  *report.Builder
}

// newApp loads the environment, validates the configuration and wires the
// pipeline together. The worker pool is not started yet.
func newApp(envFile string) (*app, error) {
	_ = godotenv.Load(envFile) // a missing .env is fine

	log := logger.New()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	registry := jobs.NewRegistry()

	client := buildLLM(cfg)
	stages := pipeline.Stages{
		Transcribe: transcription.NewStage(buildTranscriber(cfg), log),
		Summarize:  summarizer.NewStage(client, summarizer.NewChunker(cfg.SummaryChunkTokens), log),
		Notes:      notes.NewStage(client, log),
	}

	orch := pipeline.New(registry, store, stages, pipeline.Options{
		Workers:              cfg.MaxConcurrent,
		MaxUploadBytes:       cfg.MaxUploadBytes,
		RetryMaxAttempts:     cfg.RetryMaxAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
		StageTimeout:         cfg.StageTimeout,
	}, log)

	log.WithField("data_dir", cfg.DataDir).
		WithField("transcribe_engine", cfg.TranscribeEngine).
		WithField("llm_engine", cfg.LLMEngine).
		Info("pipeline wired")

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		registry: registry,
		orch:     orch,
		reports:  report.New(store, log),
	}, nil
}

func buildTranscriber(cfg config.Config) transcription.Engine {
	if cfg.TranscribeEngine == config.TranscribeEngineWhisper {
		return transcription.NewWhisper(cfg.TranscribeURL, cfg.TranscribeAPIKey, cfg.TranscribeModel)
	}
	return &transcription.Mock{}
}

func buildLLM(cfg config.Config) llm.Client {
	if cfg.LLMEngine == config.LLMEngineOpenAI {
		return llm.NewOpenAI(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMGatewayURL)
	}
	return &llm.Mock{}
}

// waitTerminal polls until the job reaches a terminal state.
func (a *app) waitTerminal(ctx context.Context, id string) (types.Job, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return types.Job{}, ctx.Err()
		case <-ticker.C:
			job, err := a.registry.Get(id)
			if err != nil {
				return types.Job{}, err
			}
			if job.State.IsTerminal() {
				return job, nil
			}
		}
	}
}

package transcription

import (
	"context"

	"audio-notes-go/internal/types"
)

// Request carries what an engine needs to transcribe one file. Language is a
// hint; engines that auto-detect may ignore it.
type Request struct {
	AudioPath string
	Language  string
}

// Engine converts an audio file into a transcript. Implementations classify
// their failures as transient or permanent via types.EngineError so the
// caller can decide what to retry; they never retry internally.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (*types.Transcript, error)
}

package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/types"
)

func TestStageRunWithMockEngine(t *testing.T) {
	audio := writeTestAudio(t)
	stage := NewStage(&Mock{}, logger.Silent())

	tr, err := stage.Run(context.Background(), types.Job{ID: "job", SourcePath: audio, Language: "en"})
	require.NoError(t, err)
	assert.NotEmpty(t, tr.Text)
	assert.NotEmpty(t, tr.Segments)
	assert.Equal(t, "en", tr.Language)
	assert.Greater(t, tr.DurationSeconds, 0.0)

	// Segments tile the duration in order.
	for i := 1; i < len(tr.Segments); i++ {
		assert.GreaterOrEqual(t, tr.Segments[i].Start, tr.Segments[i-1].Start)
	}
}

func TestMockIsDeterministic(t *testing.T) {
	audio := writeTestAudio(t)
	eng := &Mock{Script: "One sentence. Another one."}

	a, err := eng.Transcribe(context.Background(), Request{AudioPath: audio})
	require.NoError(t, err)
	b, err := eng.Transcribe(context.Background(), Request{AudioPath: audio})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a.Segments, 2)
}

func TestStageRejectsMissingFile(t *testing.T) {
	stage := NewStage(&Mock{}, logger.Silent())
	_, err := stage.Run(context.Background(), types.Job{ID: "job", SourcePath: "/nope/missing.wav"})
	require.Error(t, err)
	assert.Equal(t, types.ErrorClassInput, types.Classify(err))
}

func TestStageRejectsUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slides.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o644))

	stage := NewStage(&Mock{}, logger.Silent())
	_, err := stage.Run(context.Background(), types.Job{ID: "job", SourcePath: path})
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func TestStageRejectsCorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff header"), 0o644))

	stage := NewStage(&Mock{}, logger.Silent())
	_, err := stage.Run(context.Background(), types.Job{ID: "job", SourcePath: path})
	assert.ErrorIs(t, err, types.ErrCorruptAudio)
	assert.Equal(t, types.ErrorClassInput, types.Classify(err))
}

type failingEngine struct{ err error }

func (f *failingEngine) Name() string { return "failing" }
func (f *failingEngine) Transcribe(context.Context, Request) (*types.Transcript, error) {
	return nil, f.err
}

func TestStagePropagatesEngineClassification(t *testing.T) {
	audio := writeTestAudio(t)

	stage := NewStage(&failingEngine{err: types.TransientError(errors.New("engine melted"))}, logger.Silent())
	_, err := stage.Run(context.Background(), types.Job{ID: "job", SourcePath: audio})
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))

	stage = NewStage(&failingEngine{err: types.PermanentError(errors.New("bad key"))}, logger.Silent())
	_, err = stage.Run(context.Background(), types.Job{ID: "job", SourcePath: audio})
	require.Error(t, err)
	assert.False(t, types.IsTransient(err))
	assert.Equal(t, types.ErrorClassInternal, types.Classify(err))
}

package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"bad id", ErrInvalidJobID, ErrorClassInput},
		{"bad format", fmt.Errorf("upload: %w", ErrUnsupportedFormat), ErrorClassInput},
		{"corrupt audio", ErrCorruptAudio, ErrorClassInput},
		{"empty transcript", ErrEmptyTranscript, ErrorClassInput},
		{"missing job", ErrJobNotFound, ErrorClassInput},
		{"corrupt artifact", fmt.Errorf("read summary: %w", ErrCorruptArtifact), ErrorClassCorruption},
		{"transient engine", TransientError(errors.New("503 from upstream")), ErrorClassTransient},
		{"permanent engine", PermanentError(errors.New("401 unauthorized")), ErrorClassInternal},
		{"plain error", errors.New("disk on fire"), ErrorClassInternal},
		{"nil", nil, ErrorClass("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassifyCorruptionWinsOverTransient(t *testing.T) {
	// A transient wrapper around a corruption sentinel still refuses a
	// stage-level resume.
	err := TransientError(fmt.Errorf("reload: %w", ErrCorruptArtifact))
	assert.Equal(t, ErrorClassCorruption, Classify(err))
}

func TestStageErrorUnwrap(t *testing.T) {
	inner := TransientError(errors.New("connection reset"))
	err := NewStageError(StageSummary, inner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage summary")
	assert.True(t, IsTransient(err))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageSummary, se.Stage)

	assert.NoError(t, NewStageError(StageSummary, nil))
}

func TestEngineErrorMessages(t *testing.T) {
	assert.Contains(t, TransientError(errors.New("x")).Error(), "transient")
	assert.NotContains(t, PermanentError(errors.New("x")).Error(), "transient")
	assert.False(t, IsTransient(errors.New("plain")))
}

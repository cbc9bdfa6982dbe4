package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-notes-go/internal/types"
)

func TestValidateJobID(t *testing.T) {
	assert.NoError(t, ValidateJobID(NewJobID()))
	assert.NoError(t, ValidateJobID("0b9f9b1e-54f2-4d41-9717-0a3e0c8b6f21"))

	bad := []string{
		"",
		"../../etc/passwd",
		"foo/bar",
		"..",
		"notes",
		"0B9F9B1E-54F2-4D41-9717-0A3E0C8B6F21",           // not canonical
		"urn:uuid:0b9f9b1e-54f2-4d41-9717-0a3e0c8b6f21", // not canonical
		"0b9f9b1e54f24d4197170a3e0c8b6f21",              // missing dashes
	}
	for _, id := range bad {
		err := ValidateJobID(id)
		assert.ErrorIs(t, err, types.ErrInvalidJobID, "id %q", id)
	}
}

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("/data")
	id := "0b9f9b1e-54f2-4d41-9717-0a3e0c8b6f21"

	src, err := l.SourcePath(id, ".wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "uploads", id+".wav"), src)

	for stage, dir := range map[types.Stage]string{
		types.StageTranscript: "transcripts",
		types.StageSummary:    "summaries",
		types.StageNotes:      "notes",
	} {
		p, err := l.ArtifactPath(stage, id)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/data", dir, id+".json"), p)

		// Deterministic: same inputs, same path.
		p2, err := l.ArtifactPath(stage, id)
		require.NoError(t, err)
		assert.Equal(t, p, p2)
	}

	_, err = l.ArtifactPath(types.StageTranscript, "../escape")
	assert.ErrorIs(t, err, types.ErrInvalidJobID)

	_, err = l.ArtifactPath(types.Stage("bogus"), id)
	assert.Error(t, err)
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root)
	require.NoError(t, l.EnsureDirs())
	for _, dir := range l.Dirs() {
		assert.DirExists(t, dir)
	}
	// Second call is a no-op.
	require.NoError(t, l.EnsureDirs())
}

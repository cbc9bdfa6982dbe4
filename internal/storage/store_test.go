package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-notes-go/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSaveSource(t *testing.T) {
	s := newTestStore(t)
	id := NewJobID()

	path, size, err := s.SaveSource(id, ".wav", strings.NewReader("RIFFxxxxWAVEdata"), 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(16), size)
	assert.FileExists(t, path)

	found, err := s.FindSource(id)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestSaveSourceEnforcesLimit(t *testing.T) {
	s := newTestStore(t)
	id := NewJobID()

	_, _, err := s.SaveSource(id, ".mp3", strings.NewReader(strings.Repeat("a", 100)), 10)
	assert.ErrorIs(t, err, types.ErrUploadTooLarge)

	// The oversized upload must not land at the canonical path, nor leave a
	// temp file behind.
	_, err = s.FindSource(id)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	entries, err := os.ReadDir(s.Layout().UploadsDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteArtifactRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id := NewJobID()

	in := types.Transcript{
		Text:     "hello world",
		Segments: []types.Segment{{Start: 0, End: 1.5, Text: "hello world"}},
		Language: "en",
	}
	out, err := s.WriteArtifact(types.StageTranscript, id, in)
	require.NoError(t, err)
	assert.Equal(t, types.StageTranscript, out.Stage)
	assert.FileExists(t, out.Path)
	assert.False(t, out.ProducedAt.IsZero())

	var got types.Transcript
	require.NoError(t, s.ReadArtifact(types.StageTranscript, id, &got))
	assert.Equal(t, in, got)

	// Checksum covers the bytes as stored.
	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), out.Checksum)

	onDisk, err := s.Checksum(types.StageTranscript, id)
	require.NoError(t, err)
	assert.Equal(t, out.Checksum, onDisk)
}

func TestWriteArtifactRefusesOverwrite(t *testing.T) {
	s := newTestStore(t)
	id := NewJobID()

	_, err := s.WriteArtifact(types.StageSummary, id, types.Summary{SummaryText: "v1"})
	require.NoError(t, err)

	_, err = s.WriteArtifact(types.StageSummary, id, types.Summary{SummaryText: "v2"})
	assert.ErrorIs(t, err, types.ErrArtifactExists)

	var got types.Summary
	require.NoError(t, s.ReadArtifact(types.StageSummary, id, &got))
	assert.Equal(t, "v1", got.SummaryText)
}

func TestWriteArtifactLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	id := NewJobID()

	_, err := s.WriteArtifact(types.StageNotes, id, types.NotesDocument{Items: []types.NoteItem{}})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(s.Layout().Root(), "notes"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id+".json", entries[0].Name())
}

func TestReadArtifactErrors(t *testing.T) {
	s := newTestStore(t)
	id := NewJobID()

	var tr types.Transcript
	err := s.ReadArtifact(types.StageTranscript, id, &tr)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	// Hand-corrupt the stored file.
	path, err := s.Layout().ArtifactPath(types.StageTranscript, id)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	err = s.ReadArtifact(types.StageTranscript, id, &tr)
	assert.ErrorIs(t, err, types.ErrCorruptArtifact)
	assert.Equal(t, types.ErrorClassCorruption, types.Classify(err))

	// Zero-byte files count as corrupt too.
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	err = s.ReadArtifact(types.StageTranscript, id, &tr)
	assert.ErrorIs(t, err, types.ErrCorruptArtifact)
}

func TestArtifactExists(t *testing.T) {
	s := newTestStore(t)
	id := NewJobID()

	ok, err := s.ArtifactExists(types.StageSummary, id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.WriteArtifact(types.StageSummary, id, types.Summary{SummaryText: "s"})
	require.NoError(t, err)

	ok, err = s.ArtifactExists(types.StageSummary, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoveArtifactsAndPurge(t *testing.T) {
	s := newTestStore(t)
	id := NewJobID()

	_, _, err := s.SaveSource(id, ".wav", strings.NewReader("RIFFxxxxWAVE"), 1024)
	require.NoError(t, err)
	for _, stage := range types.Stages {
		_, err := s.WriteArtifact(stage, id, map[string]string{"x": "y"})
		require.NoError(t, err)
	}

	require.NoError(t, s.RemoveArtifacts(id, types.StageSummary, types.StageNotes))
	ok, _ := s.ArtifactExists(types.StageTranscript, id)
	assert.True(t, ok)
	ok, _ = s.ArtifactExists(types.StageSummary, id)
	assert.False(t, ok)

	// Removing something already gone is fine.
	require.NoError(t, s.RemoveArtifacts(id, types.StageSummary))

	require.NoError(t, s.PurgeJob(id))
	_, err = s.FindSource(id)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	ok, _ = s.ArtifactExists(types.StageTranscript, id)
	assert.False(t, ok)

	// Purging a purged job is a no-op.
	require.NoError(t, s.PurgeJob(id))
}

func TestScanJobs(t *testing.T) {
	s := newTestStore(t)

	fresh := NewJobID()
	_, _, err := s.SaveSource(fresh, ".wav", strings.NewReader("RIFFxxxxWAVE"), 1024)
	require.NoError(t, err)

	halfway := NewJobID()
	_, _, err = s.SaveSource(halfway, ".mp3", strings.NewReader("ID3xxx"), 1024)
	require.NoError(t, err)
	_, err = s.WriteArtifact(types.StageTranscript, halfway, types.Transcript{Text: "t"})
	require.NoError(t, err)

	finished := NewJobID()
	_, _, err = s.SaveSource(finished, ".flac", strings.NewReader("fLaCxxxx"), 1024)
	require.NoError(t, err)
	for _, stage := range types.Stages {
		_, err := s.WriteArtifact(stage, finished, map[string]string{"x": "y"})
		require.NoError(t, err)
	}

	// Noise in uploads/ that the scan must skip.
	require.NoError(t, os.WriteFile(filepath.Join(s.Layout().UploadsDir(), "README.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Layout().UploadsDir(), "not-a-uuid.wav"), []byte("RIFF"), 0o644))

	jobs, err := s.ScanJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	byID := make(map[string]types.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	assert.Equal(t, types.StateUploaded, byID[fresh].State)
	assert.Empty(t, byID[fresh].StageOutputs)

	assert.Equal(t, types.StateTranscribed, byID[halfway].State)
	require.Len(t, byID[halfway].StageOutputs, 1)
	assert.NotEmpty(t, byID[halfway].StageOutputs[types.StageTranscript].Checksum)

	assert.Equal(t, types.StateDone, byID[finished].State)
	assert.Len(t, byID[finished].StageOutputs, 3)
}

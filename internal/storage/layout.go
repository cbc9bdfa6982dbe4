package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"audio-notes-go/internal/types"
)

// Directory names under the data root. One per pipeline artifact plus the
// raw uploads.
const (
	uploadsDirName     = "uploads"
	transcriptsDirName = "transcripts"
	summariesDirName   = "summaries"
	notesDirName       = "notes"
)

var stageDirs = map[types.Stage]string{
	types.StageTranscript: transcriptsDirName,
	types.StageSummary:    summariesDirName,
	types.StageNotes:      notesDirName,
}

// Layout is the pure mapping from (job id, stage) to a canonical path under
// a data root. It holds no mutable state; the same inputs always produce the
// same path.
type Layout struct {
	root string
}

func NewLayout(root string) Layout {
	return Layout{root: root}
}

func (l Layout) Root() string { return l.root }

// Dirs lists every directory the pipeline writes into.
func (l Layout) Dirs() []string {
	return []string{
		filepath.Join(l.root, uploadsDirName),
		filepath.Join(l.root, transcriptsDirName),
		filepath.Join(l.root, summariesDirName),
		filepath.Join(l.root, notesDirName),
	}
}

// EnsureDirs creates the directory tree. Called once at process start;
// existing directories are left alone.
func (l Layout) EnsureDirs() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func (l Layout) UploadsDir() string {
	return filepath.Join(l.root, uploadsDirName)
}

func (l Layout) stageDir(stage types.Stage) (string, error) {
	name, ok := stageDirs[stage]
	if !ok {
		return "", fmt.Errorf("unknown stage %q", stage)
	}
	return filepath.Join(l.root, name), nil
}

// SourcePath returns the canonical upload path for a job and extension.
func (l Layout) SourcePath(jobID, ext string) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	return filepath.Join(l.root, uploadsDirName, jobID+ext), nil
}

// ArtifactPath returns the canonical artifact path for a job and stage.
func (l Layout) ArtifactPath(stage types.Stage, jobID string) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	dir, err := l.stageDir(stage)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, jobID+".json"), nil
}

// ValidateJobID accepts only canonical lowercase UUID strings. Anything else,
// including identifiers carrying path separators or traversal sequences, is
// rejected before it can reach a filesystem call.
func ValidateJobID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != id {
		return fmt.Errorf("%w: %q", types.ErrInvalidJobID, id)
	}
	return nil
}

// NewJobID mints a canonical job identifier.
func NewJobID() string {
	return uuid.New().String()
}

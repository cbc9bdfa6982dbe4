package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"audio-notes-go/internal/types"
)

// Store persists uploads and stage artifacts under a single data root. All
// writes go through a temp file in the destination directory followed by a
// rename, so a reader only ever sees a missing file or a complete one.
type Store struct {
	layout Layout
}

func New(root string) (*Store, error) {
	layout := NewLayout(root)
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}
	return &Store{layout: layout}, nil
}

func (s *Store) Layout() Layout { return s.layout }

// SaveSource streams an upload into uploads/<job_id><ext>, refusing to pass
// maxBytes. The returned size is the number of bytes written.
func (s *Store) SaveSource(jobID, ext string, r io.Reader, maxBytes int64) (string, int64, error) {
	dst, err := s.layout.SourcePath(jobID, ext)
	if err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(s.layout.UploadsDir(), "."+jobID+"-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, io.LimitReader(r, maxBytes+1))
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("write upload: %w", err)
	}
	if size > maxBytes {
		tmp.Close()
		return "", 0, fmt.Errorf("%w: limit %d bytes", types.ErrUploadTooLarge, maxBytes)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", 0, fmt.Errorf("finalize upload: %w", err)
	}
	return dst, size, nil
}

// FindSource locates the upload for a job, whatever its extension.
func (s *Store) FindSource(jobID string) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	matches, err := filepath.Glob(filepath.Join(s.layout.UploadsDir(), jobID+".*"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("source for job %s: %w", jobID, fs.ErrNotExist)
	}
	return matches[0], nil
}

// WriteArtifact marshals v as indented JSON and installs it at the stage's
// canonical path. It refuses to replace an existing artifact; completed
// outputs are immutable until a full re-run purges them.
func (s *Store) WriteArtifact(stage types.Stage, jobID string, v any) (types.StageOutput, error) {
	dst, err := s.layout.ArtifactPath(stage, jobID)
	if err != nil {
		return types.StageOutput{}, err
	}
	if _, err := os.Stat(dst); err == nil {
		return types.StageOutput{}, fmt.Errorf("%w: %s", types.ErrArtifactExists, dst)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return types.StageOutput{}, fmt.Errorf("encode %s artifact: %w", stage, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+jobID+".tmp-*")
	if err != nil {
		return types.StageOutput{}, fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return types.StageOutput{}, fmt.Errorf("write %s artifact: %w", stage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return types.StageOutput{}, fmt.Errorf("sync %s artifact: %w", stage, err)
	}
	if err := tmp.Close(); err != nil {
		return types.StageOutput{}, fmt.Errorf("close %s artifact: %w", stage, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return types.StageOutput{}, fmt.Errorf("finalize %s artifact: %w", stage, err)
	}

	sum := sha256.Sum256(data)
	return types.StageOutput{
		Stage:      stage,
		Path:       dst,
		ProducedAt: time.Now().UTC(),
		Checksum:   hex.EncodeToString(sum[:]),
	}, nil
}

// ReadArtifact loads and decodes a stage artifact. A missing file surfaces
// as fs.ErrNotExist; an empty or undecodable file is reported as corrupt.
func (s *Store) ReadArtifact(stage types.Stage, jobID string, out any) error {
	data, err := s.RawArtifact(stage, jobID)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s for job %s: %v", types.ErrCorruptArtifact, stage, jobID, err)
	}
	return nil
}

// RawArtifact returns the artifact bytes as stored, for serving verbatim.
func (s *Store) RawArtifact(stage types.Stage, jobID string) ([]byte, error) {
	path, err := s.layout.ArtifactPath(stage, jobID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s for job %s is empty", types.ErrCorruptArtifact, stage, jobID)
	}
	return data, nil
}

// ArtifactExists reports whether a non-empty artifact is present for the
// stage.
func (s *Store) ArtifactExists(stage types.Stage, jobID string) (bool, error) {
	path, err := s.layout.ArtifactPath(stage, jobID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Size() > 0, nil
}

// Checksum hashes the stored artifact bytes. Used to confirm a resume did
// not touch completed outputs.
func (s *Store) Checksum(stage types.Stage, jobID string) (string, error) {
	data, err := s.RawArtifact(stage, jobID)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// RemoveArtifacts deletes the named stage outputs for a job. Missing files
// are fine; a full re-run calls this before resetting the job.
func (s *Store) RemoveArtifacts(jobID string, stages ...types.Stage) error {
	for _, stage := range stages {
		path, err := s.layout.ArtifactPath(stage, jobID)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s artifact: %w", stage, err)
		}
	}
	return nil
}

// PurgeJob deletes the upload and every artifact for a job.
func (s *Store) PurgeJob(jobID string) error {
	if err := s.RemoveArtifacts(jobID, types.Stages...); err != nil {
		return err
	}
	src, err := s.FindSource(jobID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}

// ScanJobs rebuilds job records from the directory tree, inferring each
// job's state from which artifacts exist. Jobs land in their checkpoint
// state, ready to resume; in-memory detail like the failure reason does not
// survive a restart.
func (s *Store) ScanJobs() ([]types.Job, error) {
	entries, err := os.ReadDir(s.layout.UploadsDir())
	if err != nil {
		return nil, fmt.Errorf("scan uploads: %w", err)
	}

	var jobs []types.Job
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := NormalizeExt(entry.Name())
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if ValidateJobID(id) != nil {
			continue
		}
		if _, ok := supportedExts[ext]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		job := types.Job{
			ID:         id,
			SourcePath: filepath.Join(s.layout.UploadsDir(), entry.Name()),
			Filename:   entry.Name(),
			SizeBytes:  info.Size(),
			State:      types.StateUploaded,
			CreatedAt:  info.ModTime().UTC(),
			UpdatedAt:  info.ModTime().UTC(),
		}
		for _, stage := range types.Stages {
			out, ok, err := s.recoverOutput(stage, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if job.StageOutputs == nil {
				job.StageOutputs = make(map[types.Stage]types.StageOutput, len(types.Stages))
			}
			job.StageOutputs[stage] = out
			job.State = stage.DoneState()
			if out.ProducedAt.After(job.UpdatedAt) {
				job.UpdatedAt = out.ProducedAt
			}
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}

func (s *Store) recoverOutput(stage types.Stage, jobID string) (types.StageOutput, bool, error) {
	path, err := s.layout.ArtifactPath(stage, jobID)
	if err != nil {
		return types.StageOutput{}, false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.StageOutput{}, false, nil
	}
	if err != nil {
		return types.StageOutput{}, false, err
	}
	if info.Size() == 0 {
		return types.StageOutput{}, false, nil
	}
	sum, err := s.Checksum(stage, jobID)
	if err != nil {
		return types.StageOutput{}, false, err
	}
	return types.StageOutput{
		Stage:      stage,
		Path:       path,
		ProducedAt: info.ModTime().UTC(),
		Checksum:   sum,
	}, true, nil
}

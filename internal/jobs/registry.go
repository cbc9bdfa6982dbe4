package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"audio-notes-go/internal/types"
)

// Registry is the in-memory table of jobs. Readers get snapshots under a
// shared lock; every mutation runs under the write lock through Update or
// Transition, which keeps lifecycle edges legal in one place. The registry
// never blocks on stage work; callers must not do I/O inside an Update
// closure.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*types.Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*types.Job)}
}

// Add inserts a new job record.
func (r *Registry) Add(job types.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", types.ErrJobExists, job.ID)
	}
	j := job.Clone()
	r.jobs[job.ID] = &j
	return nil
}

// Get returns a snapshot of one job.
func (r *Registry) Get(id string) (types.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return types.Job{}, fmt.Errorf("%w: %s", types.ErrJobNotFound, id)
	}
	return job.Clone(), nil
}

// List returns snapshots of all jobs, newest first.
func (r *Registry) List() []types.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Update applies fn to a job under the write lock and returns the resulting
// snapshot. When fn errors the job is left untouched.
func (r *Registry) Update(id string, fn func(*types.Job) error) (types.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return types.Job{}, fmt.Errorf("%w: %s", types.ErrJobNotFound, id)
	}
	staged := job.Clone()
	if err := fn(&staged); err != nil {
		return job.Clone(), err
	}
	staged.UpdatedAt = time.Now().UTC()
	*job = staged
	return job.Clone(), nil
}

// Transition moves a job along a legal lifecycle edge.
func (r *Registry) Transition(id string, to types.JobState) (types.Job, error) {
	return r.Update(id, func(job *types.Job) error {
		if err := types.ValidateTransition(job.State, to); err != nil {
			return err
		}
		job.State = to
		return nil
	})
}

// Remove deletes a job record.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", types.ErrJobNotFound, id)
	}
	delete(r.jobs, id)
	return nil
}

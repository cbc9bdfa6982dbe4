package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"audio-notes-go/internal/jobs"
	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/notes"
	"audio-notes-go/internal/storage"
	"audio-notes-go/internal/summarizer"
	"audio-notes-go/internal/transcription"
	"audio-notes-go/internal/types"
)

// Stages bundles the three stage runners the orchestrator sequences.
type Stages struct {
	Transcribe *transcription.Stage
	Summarize  *summarizer.Stage
	Notes      *notes.Stage
}

// Options tunes the worker pool and retry behavior. Zero values fall back to
// serviceable defaults.
type Options struct {
	Workers              int
	QueueSize            int
	MaxUploadBytes       int64
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	StageTimeout         time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 4
	}
	if o.QueueSize < 1 {
		o.QueueSize = 256
	}
	if o.MaxUploadBytes < 1 {
		o.MaxUploadBytes = 256 << 20
	}
	if o.RetryMaxAttempts < 1 {
		o.RetryMaxAttempts = 3
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 500 * time.Millisecond
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = 5 * time.Minute
	}
	return o
}

// Submission is one incoming upload.
type Submission struct {
	Filename string
	Language string
	Reader   io.Reader
}

// Orchestrator owns the job lifecycle: it accepts uploads, schedules jobs
// across a worker pool and walks each job through its stages in order. Jobs
// are independent; stages within a job are strictly sequential. No lock is
// held while a stage call is in flight.
type Orchestrator struct {
	registry *jobs.Registry
	store    *storage.Store
	stages   Stages
	opts     Options
	log      *logger.Logger

	queue   chan string
	wg      sync.WaitGroup
	baseCtx context.Context
	abort   context.CancelFunc

	mu      sync.Mutex
	running map[string]struct{}
	closed  bool
}

func New(registry *jobs.Registry, store *storage.Store, stages Stages, opts Options, log *logger.Logger) *Orchestrator {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		registry: registry,
		store:    store,
		stages:   stages,
		opts:     opts,
		log:      log,
		queue:    make(chan string, opts.QueueSize),
		baseCtx:  ctx,
		abort:    cancel,
		running:  make(map[string]struct{}),
	}
}

// Start launches the worker pool.
func (o *Orchestrator) Start() {
	for i := 0; i < o.opts.Workers; i++ {
		o.wg.Add(1)
		go o.worker()
	}
	o.log.WithField("workers", o.opts.Workers).Info("pipeline started")
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for id := range o.queue {
		if o.baseCtx.Err() != nil {
			// Shutdown deadline passed; leave remaining jobs at their
			// checkpoints for the next run.
			continue
		}
		o.runJob(id)
	}
}

// CreateJob validates and stores an upload, registers the job and queues it
// for processing.
func (o *Orchestrator) CreateJob(sub Submission) (types.Job, error) {
	if o.isClosed() {
		return types.Job{}, types.ErrPipelineClosed
	}

	ext, err := storage.CheckExtension(sub.Filename)
	if err != nil {
		return types.Job{}, err
	}

	id := storage.NewJobID()
	path, size, err := o.store.SaveSource(id, ext, sub.Reader, o.opts.MaxUploadBytes)
	if err != nil {
		return types.Job{}, err
	}

	now := time.Now().UTC()
	job := types.Job{
		ID:         id,
		SourcePath: path,
		Filename:   sub.Filename,
		SizeBytes:  size,
		Language:   sub.Language,
		State:      types.StateUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.registry.Add(job); err != nil {
		_ = o.store.PurgeJob(id)
		return types.Job{}, err
	}
	if err := o.enqueue(id); err != nil {
		_ = o.registry.Remove(id)
		_ = o.store.PurgeJob(id)
		return types.Job{}, err
	}

	o.log.WithJob(id).WithField("filename", sub.Filename).WithField("size_bytes", size).Info("job accepted")
	return job, nil
}

// Restore loads previously scanned job records into the registry, skipping
// ids that are already present. It queues nothing.
func (o *Orchestrator) Restore(scanned []types.Job) int {
	added := 0
	for _, job := range scanned {
		if err := o.registry.Add(job); err == nil {
			added++
		}
	}
	return added
}

// ResumeIncomplete queues every job currently sitting at a checkpoint.
// Completed stages stay untouched; each job picks up exactly where its
// artifacts say it stopped.
func (o *Orchestrator) ResumeIncomplete() int {
	resumed := 0
	for _, job := range o.registry.List() {
		if _, ok := types.NextStage(job.State); !ok {
			continue
		}
		if err := o.enqueue(job.ID); err != nil {
			o.log.WithJob(job.ID).WithError(err).Warn("could not queue job for resume")
			continue
		}
		resumed++
	}
	return resumed
}

// Cancel requests cancellation. Jobs waiting at a checkpoint cancel on the
// spot; a job whose stage is in flight finishes or times out first and the
// request takes effect at the next stage boundary.
func (o *Orchestrator) Cancel(id string) (types.Job, error) {
	return o.registry.Update(id, func(j *types.Job) error {
		switch {
		case j.State == types.StateCancelled:
			return nil
		case !j.State.IsCancellable():
			return fmt.Errorf("%w: cannot cancel job in state %s", types.ErrInvalidTransition, j.State)
		case j.State.IsWorking():
			j.CancelRequested = true
			return nil
		default:
			j.State = types.StateCancelled
			j.CancelRequested = false
			return nil
		}
	})
}

// Retry re-queues a finished job. With full=false the job resumes from its
// last checkpoint, reusing every completed artifact; with full=true all
// artifacts are deleted and the job starts over from the upload. A job whose
// stored failure is corruption-class only accepts a full re-run.
func (o *Orchestrator) Retry(id string, full bool) (types.Job, error) {
	if o.isClosed() {
		return types.Job{}, types.ErrPipelineClosed
	}
	if o.isRunning(id) {
		return types.Job{}, fmt.Errorf("%w: %s", types.ErrJobBusy, id)
	}

	job, err := o.registry.Get(id)
	if err != nil {
		return types.Job{}, err
	}
	if !job.State.IsTerminal() {
		if _, ok := types.NextStage(job.State); ok {
			// Already at a checkpoint; just make sure it is queued.
			return job, o.enqueue(id)
		}
		return types.Job{}, fmt.Errorf("%w: job %s is %s", types.ErrJobBusy, id, job.State)
	}

	if full {
		return o.rerunFromScratch(id)
	}

	if job.Error != nil && job.Error.Class == types.ErrorClassCorruption {
		return types.Job{}, fmt.Errorf("%w: job %s requires a full re-run", types.ErrCorruptArtifact, id)
	}

	if job.State == types.StateDone {
		// Nothing left to run; queuing it is a no-op pass that writes
		// nothing and leaves the artifacts alone.
		return job, o.enqueue(id)
	}

	updated, err := o.registry.Update(id, func(j *types.Job) error {
		checkpoint := types.StateUploaded
		if _, ok := j.StageOutputs[types.StageSummary]; ok {
			checkpoint = types.StateSummarized
		} else if _, ok := j.StageOutputs[types.StageTranscript]; ok {
			checkpoint = types.StateTranscribed
		}
		if err := types.ValidateTransition(j.State, checkpoint); err != nil {
			return err
		}
		j.State = checkpoint
		j.Error = nil
		j.CancelRequested = false
		return nil
	})
	if err != nil {
		return types.Job{}, err
	}
	return updated, o.enqueue(id)
}

func (o *Orchestrator) rerunFromScratch(id string) (types.Job, error) {
	if err := o.store.RemoveArtifacts(id, types.Stages...); err != nil {
		return types.Job{}, err
	}
	updated, err := o.registry.Update(id, func(j *types.Job) error {
		if err := types.ValidateTransition(j.State, types.StateUploaded); err != nil {
			return err
		}
		j.State = types.StateUploaded
		j.Error = nil
		j.CancelRequested = false
		j.StageOutputs = nil
		return nil
	})
	if err != nil {
		return types.Job{}, err
	}
	return updated, o.enqueue(id)
}

// Purge removes a job and every file it owns. Running jobs refuse.
func (o *Orchestrator) Purge(id string) error {
	if o.isRunning(id) {
		return fmt.Errorf("%w: %s", types.ErrJobBusy, id)
	}
	if _, err := o.registry.Get(id); err != nil {
		return err
	}
	if err := o.store.PurgeJob(id); err != nil {
		return err
	}
	return o.registry.Remove(id)
}

// Close rejects new submissions, drains queued and in-flight jobs, and
// returns once the workers are idle. When ctx expires first, in-flight stage
// calls are aborted and unprocessed jobs stay at their checkpoints.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	o.log.Info("pipeline draining")
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.abort()
		o.log.Info("pipeline stopped")
		return nil
	case <-ctx.Done():
		o.abort()
		<-done
		o.log.Warn("pipeline stopped before the queue drained")
		return ctx.Err()
	}
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) isRunning(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[id]
	return ok
}

func (o *Orchestrator) tryAcquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.running[id]; ok {
		return false
	}
	o.running[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, id)
}

func (o *Orchestrator) enqueue(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return types.ErrPipelineClosed
	}
	select {
	case o.queue <- id:
		return nil
	default:
		return fmt.Errorf("%w: %d jobs waiting", types.ErrQueueFull, cap(o.queue))
	}
}

// runJob walks one job from its current checkpoint to a terminal state or a
// cancel boundary. Exactly one runner owns a job at a time.
func (o *Orchestrator) runJob(id string) {
	if !o.tryAcquire(id) {
		return
	}
	defer o.release(id)

	for {
		job, err := o.registry.Get(id)
		if err != nil {
			return // purged while queued
		}

		if job.CancelRequested {
			if _, ok := types.NextStage(job.State); ok {
				_, _ = o.registry.Update(id, func(j *types.Job) error {
					if err := types.ValidateTransition(j.State, types.StateCancelled); err != nil {
						return err
					}
					j.State = types.StateCancelled
					j.CancelRequested = false
					return nil
				})
				o.log.WithJob(id).Info("job cancelled")
			}
			return
		}

		stage, ok := types.NextStage(job.State)
		if !ok {
			return // terminal, or a stale queue entry for a running state
		}

		if err := o.safeExecute(job, stage); err != nil {
			o.failJob(id, stage, err)
			return
		}
	}
}

// safeExecute shields the worker from a panicking stage; a panic becomes an
// internal-class job failure instead of taking the process down.
func (o *Orchestrator) safeExecute(job types.Job, stage types.Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()
	return o.executeStage(job, stage)
}

func (o *Orchestrator) executeStage(job types.Job, stage types.Stage) error {
	if _, err := o.registry.Transition(job.ID, stage.WorkingState()); err != nil {
		return err
	}

	entry := o.log.WithStage(job.ID, string(stage))

	var artifact any
	op := func() error {
		ctx, cancel := context.WithTimeout(o.baseCtx, o.opts.StageTimeout)
		defer cancel()

		v, err := o.invoke(ctx, job, stage)
		if err != nil {
			// Corruption wrapped in a transient engine error still refuses
			// to retry; Classify puts corruption first.
			if types.Classify(err) == types.ErrorClassTransient {
				return err
			}
			return backoff.Permanent(err)
		}
		artifact = v
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.opts.RetryInitialInterval
	bo.MaxElapsedTime = 0

	err := backoff.RetryNotify(
		op,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(o.opts.RetryMaxAttempts-1)), o.baseCtx),
		func(err error, next time.Duration) {
			entry.WithError(err).WithField("next_attempt_in", next.String()).Warn("stage attempt failed, retrying")
		},
	)
	if err != nil {
		return err
	}

	out, err := o.store.WriteArtifact(stage, job.ID, artifact)
	if err != nil {
		return err
	}

	_, err = o.registry.Update(job.ID, func(j *types.Job) error {
		if err := types.ValidateTransition(j.State, stage.DoneState()); err != nil {
			return err
		}
		j.State = stage.DoneState()
		if j.StageOutputs == nil {
			j.StageOutputs = make(map[types.Stage]types.StageOutput, len(types.Stages))
		}
		j.StageOutputs[stage] = out
		return nil
	})
	if err != nil {
		return err
	}

	entry.WithField("artifact", out.Path).Info("stage complete")
	return nil
}

// invoke runs one stage against its input artifacts. Inputs are re-read from
// disk rather than trusted from memory, which is where corrupt intermediate
// artifacts get caught.
func (o *Orchestrator) invoke(ctx context.Context, job types.Job, stage types.Stage) (any, error) {
	switch stage {
	case types.StageTranscript:
		return o.stages.Transcribe.Run(ctx, job)
	case types.StageSummary:
		var tr types.Transcript
		if err := o.store.ReadArtifact(types.StageTranscript, job.ID, &tr); err != nil {
			return nil, err
		}
		return o.stages.Summarize.Run(ctx, job, &tr)
	case types.StageNotes:
		var tr types.Transcript
		if err := o.store.ReadArtifact(types.StageTranscript, job.ID, &tr); err != nil {
			return nil, err
		}
		var sum types.Summary
		if err := o.store.ReadArtifact(types.StageSummary, job.ID, &sum); err != nil {
			return nil, err
		}
		return o.stages.Notes.Run(ctx, job, &tr, &sum)
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
}

// failJob translates a stage error into job state plus stored detail. Stage
// failures never escape the worker.
func (o *Orchestrator) failJob(id string, stage types.Stage, cause error) {
	class := types.Classify(cause)
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		// Shutdown abort or timeout, not a structural failure; the job can
		// re-enter from its checkpoint.
		class = types.ErrorClassTransient
	}
	_, err := o.registry.Update(id, func(j *types.Job) error {
		if err := types.ValidateTransition(j.State, types.StateFailed); err != nil {
			return err
		}
		j.State = types.StateFailed
		j.CancelRequested = false
		j.Error = &types.JobError{
			Stage:   stage.WorkingState(),
			Class:   class,
			Message: cause.Error(),
		}
		return nil
	})
	if err != nil {
		o.log.WithJob(id).WithError(err).Error("could not record job failure")
		return
	}
	o.log.WithStage(id, string(stage)).WithError(cause).WithField("class", string(class)).Warn("job failed")
}

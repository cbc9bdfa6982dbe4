package types

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrorClass partitions failures by how a caller should react. Input errors
// are the caller's to fix, transient errors are worth retrying, corruption
// errors poison stored artifacts and require a full re-run, everything else
// is internal.
type ErrorClass string

const (
	ErrorClassInput      ErrorClass = "input"
	ErrorClassTransient  ErrorClass = "transient"
	ErrorClassCorruption ErrorClass = "corruption"
	ErrorClassInternal   ErrorClass = "internal"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidJobID      = errors.New("invalid job id")
	ErrJobNotFound       = errors.New("job not found")
	ErrJobExists         = errors.New("job already exists")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrCorruptAudio      = errors.New("corrupt or unreadable audio")
	ErrEmptyTranscript   = errors.New("transcript contains no text")
	ErrUploadTooLarge    = errors.New("upload exceeds size limit")
	ErrCorruptArtifact   = errors.New("stored artifact is corrupt")
	ErrArtifactExists    = errors.New("artifact already exists")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrPipelineClosed    = errors.New("pipeline is shut down")
	ErrJobBusy           = errors.New("job is currently being processed")
	ErrQueueFull         = errors.New("job queue is full")
)

// EngineError wraps a failure from an external engine (transcription or
// language model) and records whether retrying could help.
type EngineError struct {
	Transient bool
	Err       error
}

func (e *EngineError) Error() string {
	if e.Transient {
		return fmt.Sprintf("engine: transient: %v", e.Err)
	}
	return fmt.Sprintf("engine: %v", e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// TransientError marks err as retryable.
func TransientError(err error) error {
	return &EngineError{Transient: true, Err: err}
}

// PermanentError marks err as not worth retrying.
func PermanentError(err error) error {
	return &EngineError{Transient: false, Err: err}
}

// IsTransient reports whether err is marked retryable anywhere in its chain.
func IsTransient(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Transient
}

// StageError ties a failure to the pipeline stage that raised it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the stage it came from. Nil in, nil out.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Classify maps an error chain to its ErrorClass.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCorruptArtifact):
		return ErrorClassCorruption
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidJobID),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrCorruptAudio),
		errors.Is(err, ErrEmptyTranscript),
		errors.Is(err, ErrUploadTooLarge),
		errors.Is(err, ErrJobNotFound),
		errors.Is(err, ErrJobExists),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, fs.ErrNotExist):
		return ErrorClassInput
	case IsTransient(err), errors.Is(err, ErrQueueFull):
		return ErrorClassTransient
	default:
		return ErrorClassInternal
	}
}

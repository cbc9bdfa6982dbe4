package types

import "fmt"

// JobState is a node in the job lifecycle. Stable states survive a retry or
// restart decision; working states mean the orchestrator currently holds the
// job.
type JobState string

const (
	StateUploaded        JobState = "uploaded"
	StateTranscribing    JobState = "transcribing"
	StateTranscribed     JobState = "transcribed"
	StateSummarizing     JobState = "summarizing"
	StateSummarized      JobState = "summarized"
	StateNotesGenerating JobState = "notes_generating"
	StateDone            JobState = "done"
	StateFailed          JobState = "failed"
	StateCancelled       JobState = "cancelled"
)

// allowedTransitions is the complete lifecycle graph. Retries re-enter at a
// checkpoint state (uploaded, transcribed or summarized) so completed stages
// are not repeated; a full re-run always re-enters at uploaded.
var allowedTransitions = map[JobState]map[JobState]struct{}{
	StateUploaded: {
		StateTranscribing: {},
		StateCancelled:    {},
	},
	StateTranscribing: {
		StateTranscribed: {},
		StateFailed:      {},
	},
	StateTranscribed: {
		StateSummarizing: {},
		StateCancelled:   {},
	},
	StateSummarizing: {
		StateSummarized: {},
		StateFailed:     {},
	},
	StateSummarized: {
		StateNotesGenerating: {},
		StateCancelled:       {},
	},
	StateNotesGenerating: {
		StateDone:   {},
		StateFailed: {},
	},
	StateDone: {
		StateUploaded: {},
	},
	StateFailed: {
		StateUploaded:    {},
		StateTranscribed: {},
		StateSummarized:  {},
	},
	StateCancelled: {
		StateUploaded:    {},
		StateTranscribed: {},
		StateSummarized:  {},
	},
}

// workingFor maps each stage to the working state the job sits in while that
// stage runs, and doneFor to the state reached when it completes.
var (
	workingFor = map[Stage]JobState{
		StageTranscript: StateTranscribing,
		StageSummary:    StateSummarizing,
		StageNotes:      StateNotesGenerating,
	}
	doneFor = map[Stage]JobState{
		StageTranscript: StateTranscribed,
		StageSummary:    StateSummarized,
		StageNotes:      StateDone,
	}
)

// WorkingState returns the in-progress state for a stage.
func (s Stage) WorkingState() JobState { return workingFor[s] }

// DoneState returns the state a job reaches when the stage completes.
func (s Stage) DoneState() JobState { return doneFor[s] }

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to JobState) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not a
// legal lifecycle edge.
func ValidateTransition(from, to JobState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminal reports whether a state requires an explicit retry or re-run to
// leave.
func (s JobState) IsTerminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// IsWorking reports whether the orchestrator currently owns the job.
func (s JobState) IsWorking() bool {
	return s == StateTranscribing || s == StateSummarizing || s == StateNotesGenerating
}

// IsCancellable reports whether a cancel request can still take effect. The
// working states accept the request too; it is honored at the next stage
// boundary.
func (s JobState) IsCancellable() bool {
	return s == StateUploaded || s == StateTranscribed || s == StateSummarized || s.IsWorking()
}

// NextStage returns the stage the pipeline should run next from a checkpoint
// state, or false when the state is not a checkpoint.
func NextStage(s JobState) (Stage, bool) {
	switch s {
	case StateUploaded:
		return StageTranscript, true
	case StateTranscribed:
		return StageSummary, true
	case StateSummarized:
		return StageNotes, true
	default:
		return "", false
	}
}

// CheckpointFor returns the stable state from which a failed or cancelled
// stage can be resumed without repeating completed work.
func CheckpointFor(stage Stage) JobState {
	switch stage {
	case StageSummary:
		return StateTranscribed
	case StageNotes:
		return StateSummarized
	default:
		return StateUploaded
	}
}

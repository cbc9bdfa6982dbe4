package types

import "time"

// Stage names an artifact-producing pipeline step. Stage values double as the
// artifact identifiers used in storage paths and API routes.
type Stage string

const (
	StageTranscript Stage = "transcript"
	StageSummary    Stage = "summary"
	StageNotes      Stage = "notes"
)

// Stages lists the pipeline steps in execution order.
var Stages = []Stage{StageTranscript, StageSummary, StageNotes}

// StageOutput records one successfully produced artifact. Outputs are
// immutable once recorded; a completed stage is never re-run unless the
// caller asks for a full re-run.
type StageOutput struct {
	Stage      Stage     `json:"stage"`
	Path       string    `json:"path"`
	ProducedAt time.Time `json:"produced_at"`
	Checksum   string    `json:"checksum"`
}

// JobError is the stored failure detail surfaced by status queries.
type JobError struct {
	Stage   JobState   `json:"stage"`
	Class   ErrorClass `json:"class"`
	Message string     `json:"message"`
}

// Job is one uploaded audio file's journey through the pipeline. Records are
// owned by the registry and mutated only under its lock; everything else
// works with snapshots.
type Job struct {
	ID              string                `json:"id"`
	SourcePath      string                `json:"source_path"`
	Filename        string                `json:"filename,omitempty"`
	SizeBytes       int64                 `json:"size_bytes,omitempty"`
	Language        string                `json:"language,omitempty"`
	State           JobState              `json:"state"`
	Error           *JobError             `json:"error,omitempty"`
	CancelRequested bool                  `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	StageOutputs    map[Stage]StageOutput `json:"stage_outputs,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (j Job) Clone() Job {
	out := j
	if j.StageOutputs != nil {
		out.StageOutputs = make(map[Stage]StageOutput, len(j.StageOutputs))
		for k, v := range j.StageOutputs {
			out.StageOutputs[k] = v
		}
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	return out
}

// Output returns the recorded output for a stage, if any.
func (j Job) Output(stage Stage) (StageOutput, bool) {
	out, ok := j.StageOutputs[stage]
	return out, ok
}

// Segment is a time-aligned portion of a transcript, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the artifact written to transcripts/<job_id>.json.
type Transcript struct {
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments"`
	Language        string    `json:"language,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
}

// Summary is the artifact written to summaries/<job_id>.json. ChunkSummaries
// is empty when the transcript fit in a single chunk.
type Summary struct {
	SummaryText    string   `json:"summary_text"`
	ChunkSummaries []string `json:"chunk_summaries"`
	KeyPoints      []string `json:"key_points,omitempty"`
}

// NoteItem is one extracted note with an optional category.
type NoteItem struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

// NotesDocument is the artifact written to notes/<job_id>.json. Items may be
// empty; an empty list means extraction found nothing, not that it failed.
type NotesDocument struct {
	Items []NoteItem `json:"items"`
}
